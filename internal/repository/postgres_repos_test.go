package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/grantdesk/internal/database"
	"github.com/hitoshi/grantdesk/internal/model"
)

func TestRepos_ImplementInterfaces(t *testing.T) {
	var _ GrantRepository = (*PostgresGrantRepo)(nil)
	var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
	var _ DocumentRepository = (*PostgresDocumentRepo)(nil)
	var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
	var _ ReportRepository = (*PostgresReportRepo)(nil)
	var _ OrganizationRepository = (*PostgresOrganizationRepo)(nil)
}

func TestRepos_PropagateNotConfigured(t *testing.T) {
	conn := stubConn{err: database.ErrNotConfigured}
	ctx := context.Background()

	if _, err := NewPostgresGrantRepo(conn).List(ctx, model.GrantFilter{}); !errors.Is(err, database.ErrNotConfigured) {
		t.Errorf("grant List error = %v", err)
	}
	if _, err := NewPostgresApplicationRepo(conn).FindByID(ctx, 1); !errors.Is(err, database.ErrNotConfigured) {
		t.Errorf("application FindByID error = %v", err)
	}
	if _, err := NewPostgresDocumentRepo(conn).DeleteOwned(ctx, 1, 1); !errors.Is(err, database.ErrNotConfigured) {
		t.Errorf("document DeleteOwned error = %v", err)
	}
	if _, err := NewPostgresNotificationRepo(conn).DeleteReadBefore(ctx, time.Now()); !errors.Is(err, database.ErrNotConfigured) {
		t.Errorf("notification DeleteReadBefore error = %v", err)
	}
	if _, err := NewPostgresReportRepo(conn).ListByCreator(ctx, 1); !errors.Is(err, database.ErrNotConfigured) {
		t.Errorf("report ListByCreator error = %v", err)
	}
	if _, err := NewPostgresOrganizationRepo(conn).FindByUser(ctx, 1); !errors.Is(err, database.ErrNotConfigured) {
		t.Errorf("organization FindByUser error = %v", err)
	}
}

func TestDomainRepos_RoundTrip(t *testing.T) {
	users, db := setupUserRepo(t)
	conn := stubConn{db: db}
	ctx := context.Background()

	owner, _, err := users.ResolveOrCreate(ctx, "ext-owner", ProfileFields{}, time.Now())
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	grants := NewPostgresGrantRepo(conn)
	grant := &model.GrantOpportunity{
		FundingSource:        "Erasmus+",
		ProgramTitle:         "KA2 Cooperation Partnerships",
		ApplicationDeadline:  time.Now().Add(10 * 24 * time.Hour),
		AssignedToUserID:     &owner.ID,
		CallDocumentationURL: "https://example.org/call/ka2",
	}
	if err := grants.Create(ctx, grant); err != nil {
		t.Fatalf("grant Create failed: %v", err)
	}
	if grant.Status != model.GrantStatusMonitoring {
		t.Errorf("grant Status = %q, want monitoring", grant.Status)
	}

	t.Run("upcoming_and_dedupe", func(t *testing.T) {
		upcoming, err := grants.ListUpcoming(ctx, time.Now(), time.Now().Add(30*24*time.Hour))
		if err != nil {
			t.Fatalf("ListUpcoming failed: %v", err)
		}
		if len(upcoming) != 1 || upcoming[0].ID != grant.ID {
			t.Errorf("ListUpcoming = %+v, want the created grant", upcoming)
		}
		found, err := grants.FindByDocumentationURL(ctx, "https://example.org/call/ka2")
		if err != nil || found == nil || found.ID != grant.ID {
			t.Errorf("FindByDocumentationURL = (%+v, %v)", found, err)
		}
	})

	t.Run("application_status", func(t *testing.T) {
		apps := NewPostgresApplicationRepo(conn)
		app := &model.Application{GrantOpportunityID: grant.ID, ProjectTitle: "Youth digital skills"}
		if err := apps.Create(ctx, app); err != nil {
			t.Fatalf("application Create failed: %v", err)
		}
		ok, err := apps.UpdateStatus(ctx, app.ID, model.ApplicationStatusSubmitted)
		if err != nil || !ok {
			t.Fatalf("UpdateStatus = (%v, %v)", ok, err)
		}
		got, err := apps.FindByID(ctx, app.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Status != model.ApplicationStatusSubmitted {
			t.Errorf("Status = %q, want submitted", got.Status)
		}
	})

	t.Run("document_delete_is_owner_scoped", func(t *testing.T) {
		docs := NewPostgresDocumentRepo(conn)
		doc := &model.Document{
			DocumentType:     "statutes",
			DocumentName:     "statutes.pdf",
			FileURL:          "/files/documents/1/statutes.pdf",
			FileKey:          "documents/1/statutes.pdf",
			UploadedByUserID: &owner.ID,
		}
		if err := docs.Create(ctx, doc); err != nil {
			t.Fatalf("document Create failed: %v", err)
		}
		if ok, _ := docs.DeleteOwned(ctx, doc.ID, owner.ID+1); ok {
			t.Error("DeleteOwned by non-owner should not delete")
		}
		if ok, err := docs.DeleteOwned(ctx, doc.ID, owner.ID); err != nil || !ok {
			t.Errorf("DeleteOwned by owner = (%v, %v)", ok, err)
		}
	})

	t.Run("notification_dedupe_and_cleanup", func(t *testing.T) {
		notes := NewPostgresNotificationRepo(conn)
		n := &model.Notification{
			UserID:     owner.ID,
			Type:       model.NotificationDeadline,
			Title:      "Deadline approaching",
			EntityType: "grant",
			EntityID:   &grant.ID,
		}
		created, err := notes.CreateIfAbsent(ctx, n)
		if err != nil || !created {
			t.Fatalf("first CreateIfAbsent = (%v, %v)", created, err)
		}
		dup := *n
		created, err = notes.CreateIfAbsent(ctx, &dup)
		if err != nil || created {
			t.Errorf("duplicate CreateIfAbsent = (%v, %v), want (false, nil)", created, err)
		}

		if ok, _ := notes.MarkRead(ctx, n.ID, owner.ID+1); ok {
			t.Error("MarkRead by another user should not succeed")
		}
		if ok, err := notes.MarkRead(ctx, n.ID, owner.ID); err != nil || !ok {
			t.Fatalf("MarkRead = (%v, %v)", ok, err)
		}
		deleted, err := notes.DeleteReadBefore(ctx, time.Now().Add(time.Minute))
		if err != nil {
			t.Fatalf("DeleteReadBefore failed: %v", err)
		}
		if deleted != 1 {
			t.Errorf("deleted = %d, want 1", deleted)
		}
	})
}

func TestPostgresOrganizationRepo_UpsertReplacesProfile(t *testing.T) {
	users, db := setupUserRepo(t)
	repo := NewPostgresOrganizationRepo(stubConn{db: db})
	ctx := context.Background()

	owner, _, err := users.ResolveOrCreate(ctx, "ext-ngo", ProfileFields{}, time.Now())
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	if p, err := repo.FindByUser(ctx, owner.ID); err != nil || p != nil {
		t.Fatalf("FindByUser before upsert = (%+v, %v), want (nil, nil)", p, err)
	}

	founded, staff := 2009, 12
	first := &model.OrganizationProfile{
		UserID:           owner.ID,
		OrganizationName: "Fundación Bidea",
		MissionStatement: "Youth inclusion through sport",
		FoundedYear:      &founded,
		StaffCount:       &staff,
		Website:          "https://bidea.example.org",
	}
	created, err := repo.Upsert(ctx, first)
	if err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if !created || first.ID == 0 {
		t.Errorf("first Upsert: created = %v, id = %d", created, first.ID)
	}

	second := &model.OrganizationProfile{UserID: owner.ID, OrganizationName: "Bidea Elkartea", City: "Bilbao"}
	created, err = repo.Upsert(ctx, second)
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if created || second.ID != first.ID {
		t.Errorf("second Upsert: created = %v, id = %d, want update of %d", created, second.ID, first.ID)
	}

	got, err := repo.FindByUser(ctx, owner.ID)
	if err != nil || got == nil {
		t.Fatalf("FindByUser = (%+v, %v)", got, err)
	}
	if got.OrganizationName != "Bidea Elkartea" || got.City != "Bilbao" {
		t.Errorf("profile = %+v", got)
	}
	// 置き換えなので前回の値は残らない
	if got.MissionStatement != "" || got.Website != "" || got.FoundedYear != nil || got.StaffCount != nil {
		t.Errorf("stale fields kept: %+v", got)
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM organization_profiles WHERE user_id = $1`, owner.ID).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}
