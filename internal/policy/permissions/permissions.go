package permissions

import "context"

const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// RoleLookup resolves role membership against the surrounding application's
// identity storage.
type RoleLookup interface {
	HasRole(ctx context.Context, userName, role string) (bool, error)
}

// BanLookup answers whether a user currently holds an active ban ticket.
type BanLookup interface {
	BanTicketExists(ctx context.Context, userName string) (bool, error)
}

// Validator answers "is user X allowed to do Y to post Z". It holds no state
// of its own; absent users resolve to false.
type Validator struct {
	roles RoleLookup
	bans  BanLookup
}

func NewValidator(roles RoleLookup, bans BanLookup) *Validator {
	return &Validator{roles: roles, bans: bans}
}

// CanCreatePost is false iff an active ban ticket exists for the user.
func (v *Validator) CanCreatePost(ctx context.Context, userName string) (bool, error) {
	if userName == "" {
		return false, nil
	}
	banned, err := v.bans.BanTicketExists(ctx, userName)
	if err != nil {
		return false, err
	}
	return !banned, nil
}

// CanReportPost is false if the acting user is the author, is banned, holds
// neither the moderator nor the admin role, or if the author holds admin.
// Admin-authored content cannot be reported by anyone.
func (v *Validator) CanReportPost(ctx context.Context, userName, authorUserName string) (bool, error) {
	if userName == "" || userName == authorUserName {
		return false, nil
	}
	banned, err := v.bans.BanTicketExists(ctx, userName)
	if err != nil {
		return false, err
	}
	if banned {
		return false, nil
	}
	privileged, err := v.holdsAnyRole(ctx, userName, RoleModerator, RoleAdmin)
	if err != nil {
		return false, err
	}
	if !privileged {
		return false, nil
	}
	authorIsAdmin, err := v.roles.HasRole(ctx, authorUserName, RoleAdmin)
	if err != nil {
		return false, err
	}
	return !authorIsAdmin, nil
}

// CanUpdateOrDeletePost is true iff the acting user is the author, the post
// carries no open report ticket, and the author may still create posts.
func (v *Validator) CanUpdateOrDeletePost(ctx context.Context, userName string, isReported bool, authorUserName string) (bool, error) {
	if userName == "" || userName != authorUserName {
		return false, nil
	}
	if isReported {
		return false, nil
	}
	return v.CanCreatePost(ctx, authorUserName)
}

// CanReviewReportedPosts is true iff the user holds the admin role.
func (v *Validator) CanReviewReportedPosts(ctx context.Context, userName string) (bool, error) {
	if userName == "" {
		return false, nil
	}
	return v.roles.HasRole(ctx, userName, RoleAdmin)
}

// CanViewReportedPostContent is true iff the user holds the admin or the
// moderator role.
func (v *Validator) CanViewReportedPostContent(ctx context.Context, userName string) (bool, error) {
	if userName == "" {
		return false, nil
	}
	return v.holdsAnyRole(ctx, userName, RoleAdmin, RoleModerator)
}

func (v *Validator) holdsAnyRole(ctx context.Context, userName string, roles ...string) (bool, error) {
	for _, role := range roles {
		ok, err := v.roles.HasRole(ctx, userName, role)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
