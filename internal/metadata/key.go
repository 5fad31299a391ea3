package metadata

import "fmt"

// SchemaKey is the composite identity of one generated type/resolver set.
// Its string form is the cache key everywhere memoization occurs.
type SchemaKey struct {
	TenantID  string `json:"tenantId"`
	ClientApp string `json:"clientApp"`
	Database  string `json:"database"`
	Table     string `json:"table"`
}

// String returns a deterministic serialization of the key. Field order is
// fixed, so two keys with equal fields always produce the same cache key.
func (k SchemaKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.TenantID, k.ClientApp, k.Database, k.Table)
}
