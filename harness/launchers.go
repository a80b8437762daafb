package harness

import (
	"regexp"
	"slices"
	"strings"
)

// Launcher names registered for every run.
const (
	ChromeLauncher         = "KarmaticChrome"
	ChromeHeadlessLauncher = "KarmaticChromeHeadless"
	FirefoxLauncher        = "Firefox"
	SauceLabsBase          = "SauceLabs"

	sauceLauncherPlugin   = "karma-sauce-launcher"
	firefoxLauncherPlugin = "karma-firefox-launcher"
)

var (
	chromeRe      = regexp.MustCompile(`(?i)^chrome([ :-]?headless)?$`)
	firefoxRe     = regexp.MustCompile(`(?i)^firefox$`)
	sauceRe       = regexp.MustCompile(`^sauce-`)
	ieRe          = regexp.MustCompile(`^(msie|ie|internet ?explorer)$`)
	edgeRe        = regexp.MustCompile(`^(ms|microsoft)?edge$`)
	windowsRe     = regexp.MustCompile(`^win(dows)?\s+`)
	macRe         = regexp.MustCompile(`^(macos|mac ?os ?x|os ?x)\s+`)
	underscoresRe = regexp.MustCompile(`_+`)
)

// Browsers is the resolved launcher set.
type Browsers struct {
	// Names are the karma browser names, in request order.
	Names []string
	// Launchers are the custom launchers the names need beyond the chrome
	// launchers every run defines.
	Launchers map[string]Launcher
	// Plugins are extra karma plugins the launchers need.
	Plugins []string
	// SauceLabs reports whether any SauceLabs browser was requested.
	SauceLabs bool
}

// ResolveBrowsers maps browser identifiers to karma launchers. With no
// identifiers a single chrome launcher is used, headless unless headless is
// false. Unrecognised identifiers pass through unchanged.
func ResolveBrowsers(ids []string, headless bool) Browsers {
	b := Browsers{Launchers: map[string]Launcher{}}
	if len(ids) == 0 {
		if headless {
			b.Names = []string{ChromeHeadlessLauncher}
		} else {
			b.Names = []string{ChromeLauncher}
		}
		return b
	}

	for _, id := range ids {
		switch {
		case chromeRe.MatchString(id):
			if chromeRe.FindStringSubmatch(id)[1] != "" {
				b.Names = append(b.Names, ChromeHeadlessLauncher)
			} else {
				b.Names = append(b.Names, ChromeLauncher)
			}
		case firefoxRe.MatchString(id):
			b.addPlugin(firefoxLauncherPlugin)
			b.Names = append(b.Names, FirefoxLauncher)
		case sauceRe.MatchString(id):
			name, launcher := SauceLauncher(id)
			b.SauceLabs = true
			b.addPlugin(sauceLauncherPlugin)
			b.Launchers[name] = launcher
			b.Names = append(b.Names, name)
		default:
			b.Names = append(b.Names, id)
		}
	}
	return b
}

func (b *Browsers) addPlugin(p string) {
	if !slices.Contains(b.Plugins, p) {
		b.Plugins = append(b.Plugins, p)
	}
}

// SauceLauncher parses sauce-<browser>[-<version>[-<platform>]].
func SauceLauncher(id string) (string, Launcher) {
	parts := strings.Split(strings.ToLower(id), "-")
	name := strings.Join(parts, "_")

	l := Launcher{Base: SauceLabsBase}
	if len(parts) > 1 {
		browser := underscoresRe.ReplaceAllString(parts[1], " ")
		browser = ieRe.ReplaceAllString(browser, "Internet Explorer")
		l.BrowserName = edgeRe.ReplaceAllString(browser, "MicrosoftEdge")
	}
	if len(parts) > 2 {
		l.Version = parts[2]
	}
	if len(parts) > 3 {
		platform := underscoresRe.ReplaceAllString(strings.Join(parts[3:], " "), " ")
		platform = windowsRe.ReplaceAllString(platform, "Windows ")
		l.Platform = macRe.ReplaceAllString(platform, "OS X ")
	}
	return name, l
}
