package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide writes instructions for copying the session cookies out of
// a logged-in browser.
func WriteCookieGuide(w io.Writer) {
	lines := []string{
		strings.Repeat("=", 72),
		"SESSION COOKIE GUIDE",
		strings.Repeat("=", 72),
		"",
		"tagsync reuses the session of an account that can see the brand's",
		"tagged feed. Copy two cookies from a browser where you are logged in:",
		"",
		"STEP 1: Open https://www.instagram.com and log in",
		"STEP 2: Open Developer Tools (F12, or Cmd+Option+I on Mac)",
		"STEP 3: Application tab (Chrome) or Storage tab (Firefox) > Cookies",
		"STEP 4: Select https://www.instagram.com and copy these values:",
		"",
		"   sessionid   long string containing %3A",
		"   csrftoken   32-character string",
		"",
		"Copy the value only, without quotes or semicolons.",
		"Cookies expire. When a crawl reports an expired session, log in again.",
		"",
		"These cookies grant full access to the account. tagsync keeps them in",
		"the system keychain or an encrypted file; never share them.",
		strings.Repeat("=", 72),
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// WriteQuickGuide writes the one-line version of the cookie guide
func WriteQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 > Application > Cookies > instagram.com: copy sessionid and csrftoken (type 'help' for details)")
}
