package enums

import "fmt"

// ResourceKind names a tenant-owned resource subject to plan limits.
type ResourceKind string

const (
	ResourceVariant    ResourceKind = "variant"
	ResourceLocation   ResourceKind = "location"
	ResourceCustomer   ResourceKind = "customer"
	ResourceBundleEdge ResourceKind = "bundle_edge"
)

var validResourceKinds = []ResourceKind{
	ResourceVariant,
	ResourceLocation,
	ResourceCustomer,
	ResourceBundleEdge,
}

// IsValid reports whether the value is a known ResourceKind.
func (r ResourceKind) IsValid() bool {
	for _, candidate := range validResourceKinds {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseResourceKind converts raw input into a ResourceKind.
func ParseResourceKind(value string) (ResourceKind, error) {
	for _, candidate := range validResourceKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid resource kind %q", value)
}
