package view

import "github.com/and161185/birdwatch/internal/session"

// Route paths the gate redirects to.
const (
	LoginPath      = "/login"
	OnboardingPath = "/onboarding"
)

// Decision is the outcome of the protected-route gate.
type Decision int

const (
	// Allow renders the requested page.
	Allow Decision = iota
	// Wait shows a loading state until the session resolves.
	Wait
	// Redirect sends the actor to Route.To.
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Wait:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Route is where a protected page request ends up.
type Route struct {
	Decision Decision
	To       string
}

// Gate decides a protected page visit. Anonymous actors go to the login page;
// accounts explicitly marked as not onboarded go to onboarding unless already there.
func Gate(snap session.Snapshot, path string) Route {
	switch {
	case snap.State == session.Initializing:
		return Route{Decision: Wait}
	case !snap.Authenticated():
		return Route{Decision: Redirect, To: LoginPath}
	case snap.Identity.NeedsOnboarding() && path != OnboardingPath:
		return Route{Decision: Redirect, To: OnboardingPath}
	default:
		return Route{Decision: Allow, To: path}
	}
}
