package events

type subSettings struct {
	buffer           int
	matchFieldValues map[string]string
}

var subSettingsDefault = subSettings{
	buffer: 16,
}

// BufSize sets the capacity of the subscription channel.
func BufSize(n int) SubscriptionOpt {
	return func(s interface{}) error {
		s.(*subSettings).buffer = n
		return nil
	}
}

// MatchField delivers only events whose named string field equals value.
// It can be used to follow a single spend session:
//
//  sub, err := bus.Subscribe(new(SignatureAdded), MatchField("SpendID", id))
func MatchField(field, value string) SubscriptionOpt {
	return func(s interface{}) error {
		settings := s.(*subSettings)
		m := make(map[string]string, len(settings.matchFieldValues)+1)
		for k, v := range settings.matchFieldValues {
			m[k] = v
		}
		m[field] = value
		settings.matchFieldValues = m
		return nil
	}
}
