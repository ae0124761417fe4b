package sublink

// Expand crosses the normalized params with the SNI pool: source order is
// the outer loop, pool order the inner one, so all variants of one inbound
// stay adjacent. Each variant gets one pool host as its SNI and a remark
// labeled with that host; nothing else is touched. An empty pool expands to
// zero variants.
func Expand(params []*CanonicalParams, pool []string) []Variant {
	variants := make([]Variant, 0, len(params)*len(pool))
	for _, p := range params {
		for _, host := range pool {
			v := Variant(*p)
			v.SNI = host
			v.Remark = p.Remark + " - sni:" + host
			variants = append(variants, v)
		}
	}
	return variants
}
