package scorecard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/scorecard/store"
	dErrors "cscexplorer/pkg/domain-errors"
	"cscexplorer/pkg/testutil/scorecarddb"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.New(scorecarddb.OpenSQLite(t), "sqlite")
	require.NoError(t, err)
	svc := New(st)
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func TestService_RequiresInit(t *testing.T) {
	st, err := store.New(scorecarddb.OpenSQLite(t), "sqlite")
	require.NoError(t, err)

	_, err = New(st).LoadCategories(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestService_Init(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, []string{"2013", "2014"}, svc.Years())

	cats, err := svc.LoadCategories(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cats)
	assert.Equal(t, domain.Category{Name: "college_id", Type: domain.TypeInteger, Scope: domain.ScopeYear}, cats[0])
	assert.Contains(t, cats, domain.Category{Name: "INSTNM", Type: domain.TypeText, Scope: domain.ScopeGlobal})
}

func TestService_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CollegeGlobal(ctx, "999")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.CollegeYears(ctx, "1", "2014", "2013")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.CollegeYears(ctx, "1", "abc", "2014")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.DataTypeYears(ctx, "INSTNM", "2014", "2014")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.DataTypeGlobal(ctx, "UGDS")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestService_DataTypeYears(t *testing.T) {
	svc := newTestService(t)

	byYear, err := svc.DataTypeYears(context.Background(), "ADM_RATE", "2013", "2014")
	require.NoError(t, err)
	assert.Equal(t, []store.Pair{
		{CollegeID: int64(1), Value: 0.07},
		{CollegeID: int64(2), Value: 0.35},
	}, byYear["2013"])
	assert.Len(t, byYear["2014"], 2)
}
