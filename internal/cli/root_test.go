package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fatrack/internal/constants"
	"fatrack/internal/logging"
	"fatrack/internal/settings"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	return &Context{
		DataDir: t.TempDir(),
		Logger:  logging.NewNopLogger(),
	}
}

func TestParseTimeOfDay(t *testing.T) {
	hour, minute, err := parseTimeOfDay("06:30")
	require.NoError(t, err)
	require.Equal(t, 6, hour)
	require.Equal(t, 30, minute)

	_, _, err = parseTimeOfDay("630")
	require.Error(t, err)

	_, _, err = parseTimeOfDay("six:30")
	require.Error(t, err)
}

func TestInitSeedsDefaults(t *testing.T) {
	ctx := testContext(t)

	cmd := &InitCmd{}
	require.NoError(t, cmd.Run(ctx))

	require.FileExists(t, ctx.SettingsPath())
	require.FileExists(t, ctx.HistoryPath())

	st, err := settings.Open(ctx.SettingsPath())
	require.NoError(t, err)
	defer st.Close()

	goal, err := st.Float(constants.KeyTotalFat, 0)
	require.NoError(t, err)
	require.Equal(t, constants.DefaultGoalGrams, goal)

	deviceID, err := st.String(constants.KeyDeviceID, "")
	require.NoError(t, err)
	require.NotEmpty(t, deviceID)
}

func TestInitPreservesExistingSettings(t *testing.T) {
	ctx := testContext(t)

	require.NoError(t, (&InitCmd{}).Run(ctx))

	st, err := settings.Open(ctx.SettingsPath())
	require.NoError(t, err)
	require.NoError(t, st.SetFloat(constants.KeyTotalFat, 72))
	before, err := st.String(constants.KeyDeviceID, "")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	require.NoError(t, (&InitCmd{}).Run(ctx))

	st, err = settings.Open(ctx.SettingsPath())
	require.NoError(t, err)
	defer st.Close()

	goal, err := st.Float(constants.KeyTotalFat, 0)
	require.NoError(t, err)
	require.Equal(t, 72.0, goal)

	after, err := st.String(constants.KeyDeviceID, "")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestAddAccumulates(t *testing.T) {
	ctx := testContext(t)
	require.NoError(t, (&InitCmd{}).Run(ctx))

	require.NoError(t, (&AddCmd{Grams: 12.5}).Run(ctx))
	require.NoError(t, (&AddCmd{Grams: 7.5}).Run(ctx))

	st, err := settings.Open(ctx.SettingsPath())
	require.NoError(t, err)
	defer st.Close()

	used, err := st.Float(constants.KeyUsedFat, 0)
	require.NoError(t, err)
	require.Equal(t, 20.0, used)
}

func TestSetResetTimeRejectsBadInput(t *testing.T) {
	ctx := testContext(t)
	require.NoError(t, (&InitCmd{}).Run(ctx))

	require.Error(t, (&SetResetTimeCmd{Time: "25:00"}).Run(ctx))
	require.Error(t, (&SetResetTimeCmd{Time: "noon"}).Run(ctx))
	require.NoError(t, (&SetResetTimeCmd{Time: "06:00"}).Run(ctx))
}

func TestRenderBarClamps(t *testing.T) {
	// Past-goal progress renders a full bar rather than overflowing.
	full := renderBar(1.8)
	exact := renderBar(1.0)
	require.Equal(t, exact, full)
	require.NotEqual(t, renderBar(0), exact)
}
