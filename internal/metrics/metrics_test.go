package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestVotesTotal_Labels(t *testing.T) {
	before := testutil.ToFloat64(VotesTotal.WithLabelValues("accepted"))
	VotesTotal.WithLabelValues("accepted").Inc()
	after := testutil.ToFloat64(VotesTotal.WithLabelValues("accepted"))
	assert.Equal(t, before+1, after)
}

func TestHubGauges(t *testing.T) {
	HubActiveRooms.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(HubActiveRooms))

	HubConnectedClients.Set(0)
	HubConnectedClients.Inc()
	HubConnectedClients.Inc()
	HubConnectedClients.Dec()
	assert.Equal(t, 1.0, testutil.ToFloat64(HubConnectedClients))
}
