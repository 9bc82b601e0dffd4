package extractor

import (
	"net/url"
	"regexp"
	"strings"
)

const trackURIPrefix = "spotify:track:"

var trackID = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// NormalizeTrackIDs converts track references into canonical "spotify:track:<id>" URIs.
//
// A reference may be a bare 22 character base62 id, a track URI or an open.spotify.com/track
// permalink. Anything else is dropped. The result keeps first-seen order without duplicates.
func NormalizeTrackIDs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, ok := parseTrackRef(ref)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, trackURIPrefix+id)
	}
	return out
}

func parseTrackRef(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)

	switch {
	case strings.HasPrefix(ref, trackURIPrefix):
		ref = strings.TrimPrefix(ref, trackURIPrefix)
	case strings.Contains(ref, "open.spotify.com/"):
		if !strings.Contains(ref, "://") {
			ref = "https://" + ref
		}
		u, err := url.Parse(ref)
		if err != nil || u.Host != "open.spotify.com" {
			return "", false
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		// permalinks may carry a locale segment: /intl-de/track/<id>
		if len(parts) == 3 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
		if len(parts) != 2 || parts[0] != "track" {
			return "", false
		}
		ref = parts[1]
	}

	if !trackID.MatchString(ref) {
		return "", false
	}
	return ref, true
}
