package search

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var resultColumns = []string{
	"library_id", "owner", "github_owner", "repo", "kind", "version", "description", "rank", "text_rank",
}

func TestSearchService_Search_FreeText(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT library_id, owner, github_owner, repo, kind, version, description, rank`).
		WithArgs("paper:* & button:*", 50, 0).
		WillReturnRows(sqlmock.NewRows(resultColumns).
			AddRow("polymerelements/paper-button", "PolymerElements", "PolymerElements", "paper-button", "element", "v3.0.0", "a material button", 1.0, 0.9))

	svc := NewSearchService(db)
	resp, err := svc.Search(context.Background(), Request{Query: "paper button"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "paper-button", resp.Results[0].Repo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchService_Search_FilterOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT library_id, owner, github_owner, repo, kind, version, description, rank`).
		WithArgs("element", 50, 0).
		WillReturnRows(sqlmock.NewRows(resultColumns))

	svc := NewSearchService(db)
	resp, err := svc.Search(context.Background(), Request{Query: "kind:element"})
	require.NoError(t, err)
	require.Empty(t, resp.Results)
	require.True(t, resp.ParsedQuery.HasFilters())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchService_Search_CombinedQueryAndFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT library_id, owner, github_owner, repo, kind, version, description, rank`).
		WithArgs("widget:*", "element", "PolymerElements", "PolymerElements", 50, 0).
		WillReturnRows(sqlmock.NewRows(resultColumns).
			AddRow("polymerelements/iron-widget", "PolymerElements", "PolymerElements", "iron-widget", "element", "v2.0.0", "a widget", 2.0, 0.5))

	svc := NewSearchService(db)
	resp, err := svc.Search(context.Background(), Request{Query: "widget kind:element owner:PolymerElements"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchService_Search_PaginationClampsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT library_id, owner, github_owner, repo, kind, version, description, rank`).
		WithArgs(1000, 20).
		WillReturnRows(sqlmock.NewRows(resultColumns))

	svc := NewSearchService(db)
	_, err = svc.Search(context.Background(), Request{Limit: 5000, Offset: 20})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchService_Search_DefaultLimitWhenUnset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT library_id, owner, github_owner, repo, kind, version, description, rank`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(resultColumns))

	svc := NewSearchService(db)
	_, err = svc.Search(context.Background(), Request{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
