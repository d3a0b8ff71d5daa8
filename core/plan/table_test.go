package plan_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NvTimLiu/spark-rapids-tools/core/plan"
	"github.com/NvTimLiu/spark-rapids-tools/internal/errors"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoadPlatformTable(t *testing.T) {
	t.Run("loads bundled defaults for every platform", func(t *testing.T) {
		for _, platform := range plan.Platforms() {
			table, err := plan.LoadPlatformTable(platform)

			require.NoError(t, err)
			assert.Equal(t, platform, table.Platform())
			assert.True(t, table.IsExecSupported("Project"))
		}
	})

	t.Run("unknown platform is a fatal configuration error", func(t *testing.T) {
		_, err := plan.LoadPlatformTable("mainframe")

		require.Error(t, err)
		assert.True(t, errors.IsErrorType(err, errors.ErrInvalidArgument))
		assert.Contains(t, err.Error(), "mainframe")
	})
}

func TestGetSpeedupFactor(t *testing.T) {
	t.Run("defaults to 1.0 for operators absent from the table", func(t *testing.T) {
		table, err := plan.LoadPlatformTable("onprem")
		require.NoError(t, err)

		assert.Equal(t, 1.0, table.GetSpeedupFactor("MadeUpExec"))
	})

	t.Run("override file replaces the operator table", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/factors.csv", "CPUOperator,Score\nUnionExec,3\n")
		table, err := plan.LoadPlatformTable("onprem")
		require.NoError(t, err)

		require.NoError(t, table.LoadSpeedupFactorFile(fs, "/factors.csv"))

		assert.Equal(t, 3.0, table.GetSpeedupFactor("UnionExec"))
		assert.Equal(t, 1.0, table.GetSpeedupFactor("ProjectExec"))
	})

	t.Run("column count mismatch against the header is fatal", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/factors.csv", "CPUOperator,Score\n\"UnionExec\"\n")
		table, err := plan.LoadPlatformTable("onprem")
		require.NoError(t, err)

		err = table.LoadSpeedupFactorFile(fs, "/factors.csv")

		require.Error(t, err)
		assert.True(t, errors.IsErrorType(err, errors.ErrInvalidArgument))
	})

	t.Run("wrong header is fatal", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/factors.csv", "Operator,Factor\nUnionExec,3\n")
		table, err := plan.LoadPlatformTable("onprem")
		require.NoError(t, err)

		assert.Error(t, table.LoadSpeedupFactorFile(fs, "/factors.csv"))
	})

	t.Run("non numeric score is fatal", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/factors.csv", "CPUOperator,Score\nUnionExec,fast\n")
		table, err := plan.LoadPlatformTable("onprem")
		require.NoError(t, err)

		assert.Error(t, table.LoadSpeedupFactorFile(fs, "/factors.csv"))
	})
}

func TestMergeTypeSupportFile(t *testing.T) {
	t.Run("overlays cells onto the defaults", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/types.csv", "Format,Direction,BOOLEAN,BINARY\nParquet,read,,NS\n")
		table, err := plan.LoadPlatformTable("onprem")
		require.NoError(t, err)

		require.NoError(t, table.MergeTypeSupportFile(fs, "/types.csv"))

		cells, known := table.TypeSupportFor("parquet", plan.DirectionRead)
		require.True(t, known)
		assert.Equal(t, plan.SupportNone, cells["binary"])
		_, hasBoolean := cells["boolean"]
		assert.False(t, hasBoolean, "blank cells mean supported")
	})

	t.Run("row with fewer columns than the header is fatal", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/types.csv", "Format,Direction,BOOLEAN,BINARY\n\"Parquet\",\"read\",\"NS\"\n")
		table, err := plan.LoadPlatformTable("onprem")
		require.NoError(t, err)

		err = table.MergeTypeSupportFile(fs, "/types.csv")

		require.Error(t, err)
		assert.True(t, errors.IsErrorType(err, errors.ErrInvalidArgument))
	})

	t.Run("unknown cell value is fatal", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/types.csv", "Format,Direction,BOOLEAN\nParquet,read,MAYBE\n")
		table, err := plan.LoadPlatformTable("onprem")
		require.NoError(t, err)

		assert.Error(t, table.MergeTypeSupportFile(fs, "/types.csv"))
	})
}
