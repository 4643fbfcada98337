package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserDaysLeft(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	unlimited := &User{}
	assert.Equal(t, -1, unlimited.DaysLeft(now))
	assert.False(t, unlimited.Expired(now))

	future := &User{ExpiresAt: sql.NullTime{Time: now.Add(72*time.Hour + time.Minute), Valid: true}}
	assert.Equal(t, 3, future.DaysLeft(now))
	assert.False(t, future.Expired(now))

	past := &User{ExpiresAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true}}
	assert.Equal(t, 0, past.DaysLeft(now))
	assert.True(t, past.Expired(now))

	exact := &User{ExpiresAt: sql.NullTime{Time: now, Valid: true}}
	assert.True(t, exact.Expired(now))
}

func TestTrafficDayIsUTC(t *testing.T) {
	// 23:30 in UTC+3 on June 2 is still June 2 in UTC.
	loc := time.FixedZone("UTC+3", 3*3600)
	at := time.Date(2024, 6, 2, 23, 30, 0, 0, loc)
	assert.Equal(t, "2024-06-02", TrafficDay(at))

	// 01:30 in UTC+3 on June 2 is June 1 in UTC.
	early := time.Date(2024, 6, 2, 1, 30, 0, 0, loc)
	assert.Equal(t, "2024-06-01", TrafficDay(early))
}

func TestNodeRenderLink(t *testing.T) {
	node := &Node{
		NodeName:     "ams-1",
		LinkTemplate: "vless://{uuid}@ams.example.com:443?path=/ws#{node_name}",
	}
	link := node.RenderLink("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "vless://11111111-2222-3333-4444-555555555555@ams.example.com:443?path=/ws#ams-1", link)

	// A template without placeholders comes back unchanged.
	literal := &Node{NodeName: "x", LinkTemplate: "vless://fixed@host:443"}
	assert.Equal(t, "vless://fixed@host:443", literal.RenderLink("anything"))
}
