package guard

import (
	"testing"

	"github.com/joomcode/errorx"
	"github.com/relaycast/relaycast-go/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPermission(t *testing.T) {
	t.Run("Exact room", func(t *testing.T) {
		perms := common.Permissions{"chat": {common.ActionSubscribe, common.ActionPublish}}

		assert.NoError(t, CheckPermission("chat", common.ActionPublish, perms))
		assert.Error(t, CheckPermission("chat", common.ActionPresence, perms))
		assert.Error(t, CheckPermission("chatter", common.ActionPublish, perms))
	})

	t.Run("Room prefix", func(t *testing.T) {
		perms := common.Permissions{"chat:*": {common.ActionSubscribe}}

		assert.NoError(t, CheckPermission("chat:general", common.ActionSubscribe, perms))
		assert.NoError(t, CheckPermission("chat:", common.ActionSubscribe, perms))
		assert.Error(t, CheckPermission("lobby", common.ActionSubscribe, perms))
	})

	t.Run("Any room, any action", func(t *testing.T) {
		perms := common.Permissions{"*": {common.ActionAll}}

		assert.NoError(t, CheckPermission("anything", common.ActionHistory, perms))
	})

	t.Run("Several patterns", func(t *testing.T) {
		perms := common.Permissions{
			"*":      {common.ActionSubscribe},
			"news:*": {common.ActionPublish},
		}

		assert.NoError(t, CheckPermission("lobby", common.ActionSubscribe, perms))
		assert.NoError(t, CheckPermission("news:today", common.ActionPublish, perms))
		assert.Error(t, CheckPermission("lobby", common.ActionPublish, perms))
	})

	t.Run("No permissions", func(t *testing.T) {
		err := CheckPermission("chat", common.ActionPublish, nil)

		require.Error(t, err)
		assert.True(t, errorx.IsOfType(err, common.ErrForbidden))
		assert.Contains(t, err.Error(), "publish is not allowed for room chat")
	})
}
