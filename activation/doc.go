// Package activation implements push-to-talk and channel link hotkeys.
//
// A State counts held triggers: the user transmits while any trigger is
// held. A Controller feeds hotkey edges into the State and, for channel
// link triggers, either moves the user into another channel or
// push-links neighbouring channels while the hotkey is held.
//
// Channel link hotkeys carry a numeric index that is decoded once into a
// Target:
//
//	target, err := activation.DecodeTrigger(10) // all sub-channels
//	if err != nil {
//	    return err
//	}
//	ctrl.OnChannelLinkTrigger(target, activation.Down)
package activation
