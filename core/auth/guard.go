package auth

import (
	"fmt"

	"github.com/trezcool/kazi/core/user"
)

// Requirement is the statically known role requirement of a route.
type Requirement int

const (
	// RequireNone marks a public route.
	RequireNone Requirement = iota
	// RequireAuthenticated marks a protected route that branches by role
	// (the dashboard): teachers and students each get their own variant.
	RequireAuthenticated
	// RequireTeacher and RequireStudent mark single-variant protected
	// routes. The guard does not cross-check the user's role against them:
	// any authenticated user sees the route's view. Role enforcement for
	// the data behind these routes stays server-side.
	RequireTeacher
	RequireStudent
)

// Action is what the caller should do with the route.
type Action int

const (
	// ActionShowLoading renders a neutral placeholder; the guard never
	// redirects while the auth state is still resolving.
	ActionShowLoading Action = iota
	ActionRedirectLogin
	ActionRender
	// ActionError is an explicit unhandled-role error: an authenticated
	// role with no view variant (e.g. admin) reaching a branching route.
	ActionError
)

// Decision is the guard's verdict for one route evaluation. View names the
// role variant to render on branching routes and is empty otherwise.
type Decision struct {
	Action Action
	View   string
	Err    string
}

// Evaluate guards a route: it is a pure function of the auth state and the
// route's requirement, so evaluating the same inputs always yields the same
// decision.
func Evaluate(st State, req Requirement) Decision {
	if req == RequireNone {
		return Decision{Action: ActionRender}
	}
	if st.IsLoading() {
		return Decision{Action: ActionShowLoading}
	}
	if !st.IsAuthenticated() {
		return Decision{Action: ActionRedirectLogin}
	}

	switch req {
	case RequireTeacher:
		return Decision{Action: ActionRender, View: user.RoleTeacher}
	case RequireStudent:
		return Decision{Action: ActionRender, View: user.RoleStudent}
	}

	// branching route: pick the variant matching the user's role
	switch st.User.Role {
	case user.RoleTeacher:
		return Decision{Action: ActionRender, View: user.RoleTeacher}
	case user.RoleStudent:
		return Decision{Action: ActionRender, View: user.RoleStudent}
	}
	return Decision{
		Action: ActionError,
		Err:    fmt.Sprintf("no view for role %q", st.User.Role),
	}
}
