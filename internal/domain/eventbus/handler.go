package eventbus

// Logger is the subset of the platform logger the audit handler needs.
type Logger interface {
	InfoTag(tag, msg string, args ...any)
	WarnTag(tag, msg string, args ...any)
}

// SubscribeAuditLog writes every auth event to the logger.
func SubscribeAuditLog(bus *Bus, logger Logger) error {
	for _, topic := range AuthTopics {
		topic := topic
		err := bus.Subscribe(topic, func(event AuthEvent) {
			fields := []any{
				"topic", topic,
				"outcome", event.Outcome,
				"client", event.Client,
			}
			if event.Subject != "" {
				fields = append(fields, "subject", event.Subject)
			}
			if event.Reason != "" {
				fields = append(fields, "reason", event.Reason)
			}
			if event.Outcome == OutcomeSuccess {
				logger.InfoTag("AUDIT", "auth event", fields...)
				return
			}
			logger.WarnTag("AUDIT", "auth event", fields...)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
