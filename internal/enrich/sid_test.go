package enrich

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInspectGroups(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		err     error
		outcome ElevationOutcome
		matched string
	}{
		{
			name:    "local administrators",
			ids:     []string{"S-1-5-32-545", "S-1-5-32-544"},
			outcome: ElevationMatched,
			matched: "S-1-5-32-544",
		},
		{
			name:    "domain admins under any domain authority",
			ids:     []string{"S-1-5-21-3623811015-3361044348-30300820-512"},
			outcome: ElevationMatched,
			matched: "S-1-5-21-3623811015-3361044348-30300820-512",
		},
		{
			name:    "enterprise admins",
			ids:     []string{"S-1-5-21-3623811015-3361044348-30300820-519"},
			outcome: ElevationMatched,
			matched: "S-1-5-21-3623811015-3361044348-30300820-519",
		},
		{
			name:    "plain domain users do not elevate",
			ids:     []string{"S-1-5-21-3623811015-3361044348-30300820-513"},
			outcome: ElevationNone,
		},
		{
			name:    "512 suffix without domain authority prefix does not elevate",
			ids:     []string{"S-1-5-32-512"},
			outcome: ElevationNone,
		},
		{
			name:    "no groups",
			outcome: ElevationNone,
		},
		{
			name:    "enumeration failure wins over partial ids",
			ids:     []string{"S-1-5-32-544"},
			err:     errors.New("token unavailable"),
			outcome: ElevationFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InspectGroups(tt.ids, tt.err)
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.matched, got.MatchedID)
			if tt.outcome == ElevationFailed {
				assert.Error(t, got.Err)
			}
		})
	}
}
