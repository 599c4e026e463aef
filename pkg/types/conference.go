// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"slices"
	"strings"
)

// Conference is a DBLP conference stream key (the "recsys" in
// "stream:conf/recsys:").
type Conference string

const (
	ConfRecSys Conference = "recsys"
	ConfKDD    Conference = "kdd"
	ConfWSDM   Conference = "wsdm"
	ConfWWW    Conference = "www"
	ConfSIGIR  Conference = "sigir"
	ConfCIKM   Conference = "cikm"
)

// KnownConferences lists the streams the crawler has been exercised against.
var KnownConferences = []Conference{ConfRecSys, ConfKDD, ConfWSDM, ConfWWW, ConfSIGIR, ConfCIKM}

// ParseConference normalizes a user-supplied key and reports whether it is
// one of KnownConferences. Unknown keys are still usable; DBLP decides.
func ParseConference(s string) (Conference, bool) {
	c := Conference(strings.ToLower(strings.TrimSpace(s)))
	return c, slices.Contains(KnownConferences, c)
}
