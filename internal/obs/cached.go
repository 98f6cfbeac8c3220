package obs

import (
	"context"

	"github.com/joescharf/qam/internal/cache"
	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/models"
)

const directoryKey = "directory"

// CachedClient memoizes reads of a Client for one session. Mutations pass
// through and drop the cached request they touched.
type CachedClient struct {
	Client
	requests   *cache.Memo[*models.Request]
	dirs       *cache.Memo[*directory.Directory]
	priorities *cache.Memo[models.Priority]
}

// NewCachedClient wraps c.
func NewCachedClient(c Client) *CachedClient {
	return &CachedClient{
		Client:     c,
		requests:   cache.New[*models.Request](),
		dirs:       cache.New[*directory.Directory](),
		priorities: cache.New[models.Priority](),
	}
}

// Reset ends the session: every memoized read is dropped.
func (c *CachedClient) Reset() {
	c.requests.Reset()
	c.dirs.Reset()
	c.priorities.Reset()
}

func (c *CachedClient) Request(ctx context.Context, id string) (*models.Request, error) {
	reqID, err := ParseRequestID(id)
	if err != nil {
		return nil, err
	}
	return c.requests.Get(ctx, reqID, func(ctx context.Context) (*models.Request, error) {
		return c.Client.Request(ctx, reqID)
	})
}

func (c *CachedClient) Events(ctx context.Context, id string) ([]models.ReviewEvent, error) {
	req, err := c.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	return req.Events, nil
}

func (c *CachedClient) Directory(ctx context.Context) (*directory.Directory, error) {
	return c.dirs.Get(ctx, directoryKey, c.Client.Directory)
}

func (c *CachedClient) Priority(ctx context.Context, req *models.Request) models.Priority {
	p, _ := c.priorities.Get(ctx, req.SrcProject, func(ctx context.Context) (models.Priority, error) {
		return c.Client.Priority(ctx, req), nil
	})
	return p
}

// invalidate drops the cached request after a mutation, whatever its outcome.
func (c *CachedClient) invalidate(id string) {
	if reqID, err := ParseRequestID(id); err == nil {
		c.requests.Invalidate(reqID)
	}
}

func (c *CachedClient) AssignReview(ctx context.Context, id, group, user, comment string) error {
	defer c.invalidate(id)
	return c.Client.AssignReview(ctx, id, group, user, comment)
}

func (c *CachedClient) UnassignReview(ctx context.Context, id, group, user, comment string) error {
	defer c.invalidate(id)
	return c.Client.UnassignReview(ctx, id, group, user, comment)
}

func (c *CachedClient) AcceptReview(ctx context.Context, id string, by Reviewer, comment string) error {
	defer c.invalidate(id)
	return c.Client.AcceptReview(ctx, id, by, comment)
}

func (c *CachedClient) DeclineReview(ctx context.Context, id string, by Reviewer, comment string) error {
	defer c.invalidate(id)
	return c.Client.DeclineReview(ctx, id, by, comment)
}
