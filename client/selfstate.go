package client

import "github.com/yllada/voicelink/message"

// SelfState returns the user's mute and deafen preference.
func (s *Supervisor) SelfState() (mute, deaf bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfMute, s.selfDeaf
}

// InitSelfState sets the preference without publishing it, e.g. from the
// configuration before the first connect. Deafened implies muted.
func (s *Supervisor) InitSelfState(mute, deaf bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfMute = mute || deaf
	s.selfDeaf = deaf
}

// SetSelfMute mutes or unmutes the microphone. Unmuting also undeafens.
func (s *Supervisor) SetSelfMute(mute bool) {
	s.loop.Post(func() {
		_, deaf := s.SelfState()
		if !mute {
			deaf = false
		}
		s.applySelfState(mute, deaf)
	})
}

// SetSelfDeaf deafens or undeafens. Deafening also mutes.
func (s *Supervisor) SetSelfDeaf(deaf bool) {
	s.loop.Post(func() {
		mute, _ := s.SelfState()
		if deaf {
			mute = true
		}
		s.applySelfState(mute, deaf)
	})
}

// ToggleSelfMute flips the mute preference.
func (s *Supervisor) ToggleSelfMute() {
	s.loop.Post(func() {
		mute, deaf := s.SelfState()
		mute = !mute
		if !mute {
			deaf = false
		}
		s.applySelfState(mute, deaf)
	})
}

// ToggleSelfDeaf flips the deafen preference.
func (s *Supervisor) ToggleSelfDeaf() {
	s.loop.Post(func() {
		mute, deaf := s.SelfState()
		deaf = !deaf
		if deaf {
			mute = true
		}
		s.applySelfState(mute, deaf)
	})
}

func (s *Supervisor) applySelfState(mute, deaf bool) {
	s.mu.Lock()
	s.selfMute = mute
	s.selfDeaf = deaf
	s.mu.Unlock()

	switch {
	case mute && deaf:
		s.log.Info("Muted and deafened")
	case mute:
		s.log.Info("Muted")
	default:
		s.log.Info("Unmuted")
	}

	if s.State() == StateConnected {
		s.send(message.SetSelfMuteDeaf{Mute: mute, Deaf: deaf})
	}
}
