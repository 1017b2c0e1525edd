package dig_container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/pmajay/apps/api/echo"
	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
	notifysvc "github.com/trezcool/pmajay/services/notify"
)

func TestNew_inMemory(t *testing.T) {
	c := New(core.NewTestConfig)

	err := c.Invoke(func(conf *core.Config, txn core.Transactor, users user.ServiceInterface, feed notifysvc.Feed, server *echoapi.Server) {
		assert.Equal(t, "memory", conf.Database.Engine)
		assert.NotNil(t, txn)
		assert.NotNil(t, users)
		assert.IsType(t, &notifysvc.MemoryFeed{}, feed)
		assert.NotNil(t, server)
	})
	require.NoError(t, err)
}
