package provider

import "strings"

// wellKnownDomains maps mail domains to the adapter that serves them. The
// table covers the stable domains each vendor publishes; domains an adapter
// reports dynamically via Domains() take precedence at lookup time.
var wellKnownDomains = map[string]string{
	// Guerrilla Mail aliases.
	"guerrillamail.com":      "guerrilla",
	"guerrillamail.net":      "guerrilla",
	"guerrillamail.org":      "guerrilla",
	"guerrillamail.biz":      "guerrilla",
	"guerrillamail.de":       "guerrilla",
	"guerrillamailblock.com": "guerrilla",
	"sharklasers.com":        "guerrilla",
	"grr.la":                 "guerrilla",
	"pokemail.net":           "guerrilla",
	"spam4.me":               "guerrilla",

	// 1secmail pool.
	"1secmail.com": "onesec",
	"1secmail.org": "onesec",
	"1secmail.net": "onesec",
	"wwjmp.com":    "onesec",
	"esiix.com":    "onesec",
	"xojxe.com":    "onesec",
	"yoggm.com":    "onesec",
}

// domainOf extracts the lowercase domain part of an email address.
// Returns "" when the address has no @ or an empty domain.
func domainOf(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}
