package repositories

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

var reviewCols = []string{"id", "property_id", "author_id", "rating", "title", "status", "created_at"}

func sampleReviewRow() *sqlmock.Rows {
	return sqlmock.NewRows(reviewCols).AddRow("r1", "p1", "t1", 4, "Nice", "published", time.Now())
}

func TestReviewCreateAndGet(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO reviews").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM reviews WHERE id").WillReturnRows(sampleReviewRow())

	repo := NewReviewRepository(db)
	rev := &models.Review{PropertyID: "p1", AuthorID: "t1", Rating: 4}
	if err := repo.Create(context.Background(), rev); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	got, err := repo.GetByID(context.Background(), rev.ID)
	if err != nil || got == nil || got.Rating != 4 {
		t.Errorf("GetByID() = %+v, %v", got, err)
	}
}

func TestReviewListByProperty_Visibility(t *testing.T) {
	tests := []struct {
		name      string
		vis       ReviewVisibility
		wantCount string
		wantArgs  []interface{}
	}{
		{
			name:      "anonymous sees published",
			vis:       ReviewVisibility{},
			wantCount: "SELECT COUNT(*) FROM reviews WHERE property_id = ? AND status = ?",
			wantArgs:  []interface{}{"p1", "published"},
		},
		{
			name:      "author also sees own hidden",
			vis:       ReviewVisibility{AuthorID: "t1"},
			wantCount: "SELECT COUNT(*) FROM reviews WHERE property_id = ? AND (status = ? OR author_id = ?)",
			wantArgs:  []interface{}{"p1", "published", "t1"},
		},
		{
			name:      "manager sees everything",
			vis:       ReviewVisibility{IncludeHidden: true},
			wantCount: "SELECT COUNT(*) FROM reviews WHERE property_id = ?",
			wantArgs:  []interface{}{"p1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery("^" + regexp.QuoteMeta(tt.wantCount) + "$").
				WithArgs(argsToDriver(tt.wantArgs)...).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
			mock.ExpectQuery("SELECT \\* FROM reviews").WillReturnRows(sampleReviewRow())

			items, total, err := NewReviewRepository(db).ListByProperty(context.Background(), "p1", tt.vis, 10, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if total != 1 || len(items) != 1 {
				t.Errorf("ListByProperty() = %d items, total %d", len(items), total)
			}
			expectationsMet(t, mock)
		})
	}
}

func argsToDriver(in []interface{}) []driver.Value {
	out := make([]driver.Value, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}

func TestReviewExistsForAuthor(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT EXISTS").WithArgs("p1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	exists, err := NewReviewRepository(db).ExistsForAuthor(context.Background(), "p1", "t1")
	if err != nil || !exists {
		t.Errorf("ExistsForAuthor() = %v, %v", exists, err)
	}
}

func TestReviewSummary(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS count").WithArgs("p1", "published").
		WillReturnRows(sqlmock.NewRows([]string{"count", "average"}).AddRow(3, 4.5))
	s, err := NewReviewRepository(db).Summary(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Count != 3 || s.Average != 4.5 {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestReviewUpdateDelete(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE reviews SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM reviews").WillReturnResult(sqlmock.NewResult(0, 0))
	repo := NewReviewRepository(db)
	if err := repo.Update(context.Background(), &models.Review{ID: "r1"}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	deleted, err := repo.Delete(context.Background(), "r1")
	if err != nil || deleted {
		t.Errorf("Delete() = %v, %v; want false, nil", deleted, err)
	}
}
