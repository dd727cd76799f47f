package protection

import "strconv"

// formatInt formata valores numéricos de headers sem puxar fmt para isso.
func formatInt(v int) string { return strconv.Itoa(v) }
