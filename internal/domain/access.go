package domain

// ============================================================
// Dataset access rules
// ============================================================

// FallbackTable is used when the backend whitelist is empty.
const FallbackTable = "Farol"

// SanitizeAllowedTables keeps the requested names that the backend permits,
// in request order and without duplicates. When nothing survives, the result
// is a single fallback: the first permitted name, or FallbackTable.
func SanitizeAllowedTables(requested, permitted []string) []string {
	allowed := toSet(permitted)
	out := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, t := range requested {
		if t == "" {
			continue
		}
		if _, ok := allowed[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > 0 {
		return out
	}
	for _, t := range permitted {
		if t != "" {
			return []string{t}
		}
	}
	return []string{FallbackTable}
}

// ResolveDefaultTable returns desired when it is in allowed, otherwise the
// first allowed table.
func ResolveDefaultTable(desired string, allowed []string) string {
	if desired != "" && contains(allowed, desired) {
		return desired
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return desired
}

// MergeAllowedTables returns current plus every name of add that the backend
// permits. Current grants are never removed.
func MergeAllowedTables(current, add, permitted []string) []string {
	allowed := toSet(permitted)
	out := make([]string, 0, len(current)+len(add))
	seen := make(map[string]struct{}, len(current)+len(add))
	push := func(t string) {
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range current {
		push(t)
	}
	for _, t := range add {
		if _, ok := allowed[t]; ok {
			push(t)
		}
	}
	return out
}

// NextDefaultTable picks the default after a grant: desired if merged holds
// it, else current if merged still holds it, else "" (leave unchanged).
func NextDefaultTable(current, desired string, merged []string) string {
	if desired != "" && contains(merged, desired) {
		return desired
	}
	if current != "" && contains(merged, current) {
		return current
	}
	return ""
}

// CanUseTable reports whether table may become the default. An empty allowed
// list means no restriction has been stored for the profile.
func CanUseTable(allowed []string, table string) bool {
	return len(allowed) == 0 || contains(allowed, table)
}

// TableNames extracts the table names of a whitelist.
func TableNames(opts []TableOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if o.TableName != "" {
			out = append(out, o.TableName)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
