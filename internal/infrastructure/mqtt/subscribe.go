package mqtt

// Subscribe asks the broker for every message matching filter.
//
// Matching messages are delivered to Handlers.OnMessage. Subscriptions do
// not survive a reconnect; callers re-subscribe from OnConnect.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "/devices/+/controls/+" matches every control value
//   - # (multi-level): "#" matches everything
func (s *Session) Subscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}

	client, err := s.connectedClient()
	if err != nil {
		return err
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	token := client.Subscribe(filter, s.qos(), s.wrapHandler(gen))
	s.watch(token, ErrSubscribeFailed, filter)
	return nil
}
