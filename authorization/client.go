package authorization

import (
	"context"
	"fmt"
	"strings"

	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
)

// Client reads the subject from the context and asks the Service on its behalf.
type Client struct {
	authzSvc *Service
}

func NewClient(authzSvc *Service) *Client {
	return &Client{
		authzSvc: authzSvc,
	}
}

// CheckAccess checks if the current user in the context has permission to perform the action on the object within the
// domain.
func (c *Client) CheckAccess(ctx context.Context, domain, object, action string) error {
	subject := authcontext.GetSubject(ctx)

	res, err := c.authzSvc.CheckAccess(ctx, CheckAccessRequest{
		Subject: subject,
		Domain:  domain,
		Object:  object,
		Action:  action,
	})
	if err != nil {
		return fmt.Errorf("error on check permission: %w", err)
	}

	if !res.Allowed {
		return &AccessDeniedError{
			Subject: subject,
			Domain:  domain,
			Object:  object,
			Action:  action,
		}
	}

	return nil
}

// CheckOwnerOrAccess passes when the current subject is ownerID, otherwise it falls back to CheckAccess.
// Anonymous callers never own anything.
func (c *Client) CheckOwnerOrAccess(ctx context.Context, ownerID, domain, object, action string) error {
	subject := authcontext.GetSubject(ctx)
	if subject != authcontext.Anonymous && subject == ownerID {
		return nil
	}

	return c.CheckAccess(ctx, domain, object, action)
}

func (c *Client) AddToGroup(ctx context.Context, sub string, group ...string) error {
	err := c.authzSvc.AddToGroup(ctx, sub, group...)
	if err != nil {
		return fmt.Errorf("error on add to group: %w", err)
	}

	return nil
}

func (c *Client) RemoveFromGroup(ctx context.Context, sub string, group ...string) error {
	err := c.authzSvc.RemoveFromGroup(ctx, sub, group...)
	if err != nil {
		return fmt.Errorf("error on remove from group: %w", err)
	}

	return nil
}

// SyncGroup makes members the exact direct membership of group. Blank ids are ignored.
func (c *Client) SyncGroup(ctx context.Context, group string, members ...string) error {
	want := make(map[string]struct{}, len(members))

	for _, member := range members {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}

		want[member] = struct{}{}

		err := c.AddToGroup(ctx, member, group)
		if err != nil {
			return err
		}
	}

	current, err := c.authzSvc.GroupMembers(ctx, group)
	if err != nil {
		return fmt.Errorf("error on get group members: %w", err)
	}

	for _, sub := range current {
		if _, ok := want[sub]; ok {
			continue
		}

		err = c.RemoveFromGroup(ctx, sub, group)
		if err != nil {
			return err
		}
	}

	return nil
}
