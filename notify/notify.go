// Package notify sends desktop notifications for connection events over
// the freedesktop notification service on the D-Bus session bus.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/voicelink/common"
)

const (
	busName      = "org.freedesktop.Notifications"
	objectPath   = "/org/freedesktop/Notifications"
	notifyMethod = busName + ".Notify"

	// expireDefault lets the server pick the timeout.
	expireDefault int32 = -1
)

// Kind selects the icon and urgency of a notification.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindWarning
	KindError
)

func (k Kind) icon() string {
	switch k {
	case KindSuccess:
		return "audio-input-microphone"
	case KindWarning:
		return "dialog-warning"
	case KindError:
		return "dialog-error"
	default:
		return "audio-headset"
	}
}

// urgency maps to the freedesktop hint: 0 low, 1 normal, 2 critical.
func (k Kind) urgency() byte {
	switch k {
	case KindError:
		return 2
	case KindWarning:
		return 1
	default:
		return 0
	}
}

// caller is the part of dbus.BusObject the notifier uses.
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusNotifier implements common.Notifier. Each notification replaces the
// previous one so connection state changes do not pile up.
type DBusNotifier struct {
	conn *dbus.Conn
	obj  caller

	mu     sync.Mutex
	lastID uint32
}

var _ common.Notifier = (*DBusNotifier)(nil)

// New connects to the session bus. It fails when no bus is available.
func New() (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &DBusNotifier{
		conn: conn,
		obj:  conn.Object(busName, objectPath),
	}, nil
}

// NewOrNop returns a D-Bus notifier, or a notifier that discards
// everything when the session bus is unavailable or enabled is false.
func NewOrNop(enabled bool) common.Notifier {
	if !enabled {
		return common.NopNotifier{}
	}
	n, err := New()
	if err != nil {
		common.LogDebug("Desktop notifications disabled: %v", err)
		return common.NopNotifier{}
	}
	return n
}

// Notify implements common.Notifier.
func (n *DBusNotifier) Notify(title, message string) error {
	return n.Send(KindInfo, title, message, "")
}

// NotifyWithIcon implements common.Notifier.
func (n *DBusNotifier) NotifyWithIcon(title, message, icon string) error {
	return n.Send(KindInfo, title, message, icon)
}

// Send shows a notification. An empty icon uses the kind's default.
func (n *DBusNotifier) Send(kind Kind, title, message, icon string) error {
	if icon == "" {
		icon = kind.icon()
	}
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(kind.urgency()),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	call := n.obj.Call(notifyMethod, 0,
		common.AppName, n.lastID, icon, title, message,
		[]string{}, hints, expireDefault)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	var id uint32
	if err := call.Store(&id); err == nil {
		n.lastID = id
	}
	return nil
}

// Close releases the bus connection.
func (n *DBusNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// Connected announces an established session.
func Connected(n common.Notifier, server string) {
	send(n, KindSuccess, "Connected", "Connected to "+server)
}

// Disconnected announces a lost session. An empty reason means the user
// asked to disconnect.
func Disconnected(n common.Notifier, server, reason string) {
	if reason == "" {
		send(n, KindInfo, "Disconnected", "Disconnected from "+server)
		return
	}
	send(n, KindWarning, "Connection lost", server+": "+reason)
}

// Reconnecting announces a scheduled reconnect.
func Reconnecting(n common.Notifier, server string, in time.Duration) {
	send(n, KindInfo, "Reconnecting", fmt.Sprintf("Reconnecting to %s in %v", server, in))
}

// Rejected announces a refused connection.
func Rejected(n common.Notifier, server, message string) {
	send(n, KindError, "Connection refused", server+": "+message)
}

func send(n common.Notifier, kind Kind, title, message string) {
	var err error
	if d, ok := n.(*DBusNotifier); ok {
		err = d.Send(kind, title, message, "")
	} else {
		err = n.NotifyWithIcon(title, message, kind.icon())
	}
	if err != nil {
		common.LogDebug("Error showing notification: %v", err)
	}
}
