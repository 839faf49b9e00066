package models

// Property describes one field of the contact schema.
type Property struct {
	Label       string
	Key         string
	Placeholder string
	Multiline   bool
}

var singleProperties = []Property{
	{Label: "name", Key: "name", Placeholder: "name"},
	{Label: "place", Key: "place", Placeholder: "place"},
	{Label: "work", Key: "work", Placeholder: "work"},
	{Label: "twttr", Key: "twttr", Placeholder: "@username"},
	{Label: "last", Key: "last", Placeholder: "last met..."},
	{Label: "notes", Key: "notes", Placeholder: "notes", Multiline: true},
}

var multiProperties = []Property{
	{Label: "tel", Key: "tel", Placeholder: "tel"},
	{Label: "email", Key: "email", Placeholder: "email"},
	{Label: "mtg", Key: "mtg", Placeholder: "meeting", Multiline: true},
}

// SingleProperties returns the single-valued properties in display order.
func SingleProperties() []Property {
	out := make([]Property, len(singleProperties))
	copy(out, singleProperties)
	return out
}

// MultiProperties returns the multi-valued properties in display order.
func MultiProperties() []Property {
	out := make([]Property, len(multiProperties))
	copy(out, multiProperties)
	return out
}

func IsSingle(key string) bool {
	for _, p := range singleProperties {
		if p.Key == key {
			return true
		}
	}
	return false
}

func IsMulti(key string) bool {
	for _, p := range multiProperties {
		if p.Key == key {
			return true
		}
	}
	return false
}

// Lookup returns the property for key.
func Lookup(key string) (Property, bool) {
	for _, p := range singleProperties {
		if p.Key == key {
			return p, true
		}
	}
	for _, p := range multiProperties {
		if p.Key == key {
			return p, true
		}
	}
	return Property{}, false
}
