package operations

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
)

func TestNewOperation(t *testing.T) {
	t.Parallel()

	version := semver.MustParse("1.2.3")
	op := NewOperation("deploy-lottery", version, "deploys the lottery",
		func(_ Bundle, _ any, _ EmptyInput) (string, error) { return "", nil })

	assert.Equal(t, "deploy-lottery", op.ID())
	assert.Equal(t, "1.2.3", op.Version())
	assert.Equal(t, "deploys the lottery", op.Description())
	assert.Equal(t, Definition{ID: "deploy-lottery", Version: version, Description: "deploys the lottery"}, op.Def())
}
