package domain

import "strings"

const (
	// MissingField stands in for an absent variant field so that an empty
	// variant and a nil variant resolve to the same key.
	MissingField = "undefined"

	keySeparator = "|"
)

// ResolveKey derives the line identity of a product+variant pair. Only the
// weight and carat select a line; two variants differing in any other field
// share a key.
func ResolveKey(productID string, v *Variant) string {
	weight, carat := MissingField, MissingField
	if v != nil {
		if v.Weight != "" {
			weight = v.Weight
		}
		if v.Carat != "" {
			carat = v.Carat
		}
	}
	return strings.Join([]string{escapeKeyPart(productID), escapeKeyPart(weight), escapeKeyPart(carat)}, keySeparator)
}

func escapeKeyPart(s string) string {
	if !strings.ContainsAny(s, `|\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, keySeparator, `\`+keySeparator)
}
