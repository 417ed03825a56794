package grok

import "sort"

// Tier identifies which map a selected token came from.
type Tier string

const (
	TierNormal Tier = "normal"
	TierSuper  Tier = "super"
)

// Selected is the outcome of Rank: which SSO value, which tier, and the
// quota field that was consulted.
type Selected struct {
	SSO   string
	Tier  Tier
	Entry TokenEntry
}

// Rank implements §4.6's token ranking algorithm: partition eligible
// entries into unused (quota unknown) and used (quota known, descending),
// then select normal.unused → normal.used → super.unused → super.used,
// with grok-4-heavy restricted to the super tier only.
func Rank(snap Snapshot, modelID string) (Selected, bool) {
	heavy := modelID == HeavyModelID

	order := []struct {
		tier Tier
		m    map[string]TokenEntry
	}{}
	if !heavy {
		order = append(order, struct {
			tier Tier
			m    map[string]TokenEntry
		}{TierNormal, snap.Normal})
	}
	order = append(order, struct {
		tier Tier
		m    map[string]TokenEntry
	}{TierSuper, snap.Super})

	for _, bucket := range order {
		unused, used := partition(bucket.m, heavy)
		if len(unused) > 0 {
			return Selected{SSO: unused[0], Tier: bucket.tier, Entry: bucket.m[unused[0]]}, true
		}
		if len(used) > 0 {
			sso := used[0]
			return Selected{SSO: sso, Tier: bucket.tier, Entry: bucket.m[sso]}, true
		}
	}
	return Selected{}, false
}

// partition splits bucket's eligible entries into unused sso values (field
// == -1) and used sso values (field > 0), the latter sorted descending by
// the relevant quota field. Entries with field == 0 or status/failure
// disqualifications are dropped entirely.
func partition(bucket map[string]TokenEntry, heavy bool) (unused []string, used []string) {
	type scored struct {
		sso   string
		value int64
	}
	var usedScored []scored

	for sso, e := range bucket {
		if !e.eligible() {
			continue
		}
		field := e.RemainingQueries
		if heavy {
			field = e.HeavyRemainingQueries
		}
		switch {
		case field == -1:
			unused = append(unused, sso)
		case field > 0:
			usedScored = append(usedScored, scored{sso: sso, value: field})
		}
	}

	sort.Slice(unused, func(i, j int) bool { return unused[i] < unused[j] })
	sort.Slice(usedScored, func(i, j int) bool {
		if usedScored[i].value != usedScored[j].value {
			return usedScored[i].value > usedScored[j].value
		}
		return usedScored[i].sso < usedScored[j].sso
	})
	for _, s := range usedScored {
		used = append(used, s.sso)
	}
	return unused, used
}
