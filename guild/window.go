package guild

import (
	"runtime"
	"slices"
	"strings"
	"weak"

	"github.com/igo95862/DiscordBot-lib-sub000/model"
)

// messageRecord is the canonical mutable copy of one tracked message.
type messageRecord struct {
	msg     model.Message
	deleted bool
}

// window keeps the newest messages of one channel strongly referenced.
// Messages pushed out of it remain reachable through evicted only while a
// Message view still anchors them.
type window struct {
	order []string // oldest first
	live  map[string]*messageRecord
}

func newWindow() *window {
	return &window{live: make(map[string]*messageRecord)}
}

func messageKey(channelID, messageID string) string {
	return channelID + "/" + messageID
}

// trackLocked adds msg to its channel window, evicting the oldest records
// beyond the configured size. s.mu must be held for writing.
func (s *State) trackLocked(msg model.Message) *messageRecord {
	w, ok := s.windows[msg.ChannelID]
	if !ok {
		w = newWindow()
		s.windows[msg.ChannelID] = w
	}
	if rec, ok := w.live[msg.ID]; ok {
		rec.msg = msg
		return rec
	}
	rec := &messageRecord{msg: msg}
	w.live[msg.ID] = rec
	w.order = append(w.order, msg.ID)

	for len(w.order) > s.cfg.MessageWindow {
		oldest := w.order[0]
		w.order = slices.Delete(w.order, 0, 1)
		if old, ok := w.live[oldest]; ok {
			delete(w.live, oldest)
			s.evictLocked(msg.ChannelID, oldest, old)
		}
	}
	return rec
}

func (s *State) evictLocked(channelID, messageID string, rec *messageRecord) {
	key := messageKey(channelID, messageID)
	s.evicted[key] = weak.Make(rec)
	runtime.AddCleanup(rec, s.forgetEvicted, key)
}

func (s *State) forgetEvicted(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.evicted[key]; ok && p.Value() == nil {
		delete(s.evicted, key)
	}
}

// recordLocked finds a tracked message, live or evicted-but-anchored.
func (s *State) recordLocked(channelID, messageID string) *messageRecord {
	if w, ok := s.windows[channelID]; ok {
		if rec, ok := w.live[messageID]; ok {
			return rec
		}
	}
	if p, ok := s.evicted[messageKey(channelID, messageID)]; ok {
		if rec := p.Value(); rec != nil && !rec.deleted {
			return rec
		}
	}
	return nil
}

// untrackLocked marks a message deleted and drops it from every index.
func (s *State) untrackLocked(channelID, messageID string) *messageRecord {
	rec := s.recordLocked(channelID, messageID)
	if rec == nil {
		return nil
	}
	rec.deleted = true
	if w, ok := s.windows[channelID]; ok {
		delete(w.live, messageID)
		if i := slices.Index(w.order, messageID); i >= 0 {
			w.order = slices.Delete(w.order, i, i+1)
		}
	}
	delete(s.evicted, messageKey(channelID, messageID))
	return rec
}

// dropChannelLocked forgets a deleted channel's whole window.
func (s *State) dropChannelLocked(channelID string) {
	w, ok := s.windows[channelID]
	if !ok {
		return
	}
	for _, rec := range w.live {
		rec.deleted = true
	}
	delete(s.windows, channelID)
	prefix := channelID + "/"
	for key, p := range s.evicted {
		if strings.HasPrefix(key, prefix) {
			if rec := p.Value(); rec != nil {
				rec.deleted = true
			}
			delete(s.evicted, key)
		}
	}
}
