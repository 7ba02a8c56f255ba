package station

// Subscribe registers a snapshot observer. The returned channel holds at
// most one snapshot: a newer snapshot replaces one that has not been read
// yet, so slow readers always see the latest state and never block updates.
// The current snapshot is delivered immediately.
func (s *Station) Subscribe() (int, <-chan *Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan *Snapshot, 1)
	s.subs[id] = ch
	if snap := s.latest.Load(); snap != nil {
		ch <- snap
	}
	return id, ch
}

// Unsubscribe removes the observer and closes its channel.
func (s *Station) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Station) publish(snap *Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		deliverLatest(ch, snap)
	}
}

// deliverLatest replaces any pending value in the one-slot ch with snap.
// Only the publisher sends, so the final send cannot race another sender.
func deliverLatest(ch chan *Snapshot, snap *Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
