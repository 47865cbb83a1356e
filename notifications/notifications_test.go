package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddURI(t *testing.T) {
	t.Parallel()

	var n Notifications
	require.NoError(t, n.AddURI(Complete, "generic://example.com/done"))
	require.NoError(t, n.AddURI(Error, "generic://example.com/oops"))
	require.ErrorIs(t, n.AddURI("explode", "generic://example.com"), ErrUnknownEvent)

	got := map[Event][]string{}
	n.IterMappings(func(event Event, uri string) {
		got[event] = append(got[event], uri)
	})
	assert.Equal(t, map[Event][]string{
		Complete: {"generic://example.com/done"},
		Error:    {"generic://example.com/oops"},
	}, got)
}

func TestSendWithoutMappings(t *testing.T) {
	t.Parallel()

	// no URIs registered for the event, nothing to do
	var n Notifications
	n.Sendf(context.Background(), Error, "error reading %s", "some/dir")
}
