// Package handlers implements the HTTP handlers of the compute API.
//
// Resource identifiers arrive either as bare vCloud ids or as URNs of the
// form urn:vcloud:<kind>:<id>. Handlers only check that an identifier is
// well formed; the compute and network services normalize them.
package handlers

import "regexp"

var (
	// resourceIDRegex validates path identifiers. Allows alphanumeric
	// characters, hyphens, underscores, dots and the colons of a URN.
	resourceIDRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_.:]{1,256}$`)
)

func validResourceID(id string) bool {
	return resourceIDRegex.MatchString(id)
}
