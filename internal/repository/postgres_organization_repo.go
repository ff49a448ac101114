package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/grantdesk/internal/model"
)

// PostgresOrganizationRepo はPostgreSQLを使用した団体プロフィールリポジトリ。
type PostgresOrganizationRepo struct {
	conn Conn
}

// NewPostgresOrganizationRepo はPostgresOrganizationRepoを生成する。
func NewPostgresOrganizationRepo(conn Conn) *PostgresOrganizationRepo {
	return &PostgresOrganizationRepo{conn: conn}
}

// FindByUser はユーザーの団体プロフィールを取得する。未登録の場合はnilを返す。
func (r *PostgresOrganizationRepo) FindByUser(ctx context.Context, userID int64) (*model.OrganizationProfile, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	p := &model.OrganizationProfile{}
	var (
		legalName, taxID, registration, orgType           sql.NullString
		mission, vision, description, thematic, geography sql.NullString
		beneficiaries, address, city, country, postal     sql.NullString
		phone, email, website                             sql.NullString
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, user_id, organization_name, legal_name, tax_id, registration_number, founded_year,
			organization_type, mission_statement, vision_statement, description, thematic_areas,
			geographic_scope, target_beneficiaries, address, city, country, postal_code, phone, email,
			website, staff_count, volunteer_count, annual_budget, created_at, updated_at
		 FROM organization_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&p.ID, &p.UserID, &p.OrganizationName, &legalName, &taxID, &registration, &p.FoundedYear,
		&orgType, &mission, &vision, &description, &thematic,
		&geography, &beneficiaries, &address, &city, &country, &postal, &phone, &email,
		&website, &p.StaffCount, &p.VolunteerCount, &p.AnnualBudget, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization profile: %w", err)
	}

	p.LegalName = legalName.String
	p.TaxID = taxID.String
	p.RegistrationNumber = registration.String
	p.OrganizationType = orgType.String
	p.MissionStatement = mission.String
	p.VisionStatement = vision.String
	p.Description = description.String
	p.ThematicAreas = thematic.String
	p.GeographicScope = geography.String
	p.TargetBeneficiaries = beneficiaries.String
	p.Address = address.String
	p.City = city.String
	p.Country = country.String
	p.PostalCode = postal.String
	p.Phone = phone.String
	p.Email = email.String
	p.Website = website.String
	return p, nil
}

// Upsert はユーザーの団体プロフィールを作成、または全項目を置き換える。
// 採番されたID、作成日時、更新日時をpに設定し、新規作成だった場合はtrueを返す。
func (r *PostgresOrganizationRepo) Upsert(ctx context.Context, p *model.OrganizationProfile) (bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return false, err
	}

	var created bool
	err = db.QueryRowContext(ctx,
		`INSERT INTO organization_profiles (
			user_id, organization_name, legal_name, tax_id, registration_number, founded_year,
			organization_type, mission_statement, vision_statement, description, thematic_areas,
			geographic_scope, target_beneficiaries, address, city, country, postal_code, phone, email,
			website, staff_count, volunteer_count, annual_budget)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6,
			NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''),
			NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, ''),
			NULLIF($17, ''), NULLIF($18, ''), NULLIF($19, ''),
			NULLIF($20, ''), $21, $22, $23)
		 ON CONFLICT (user_id) DO UPDATE SET
			organization_name = EXCLUDED.organization_name, legal_name = EXCLUDED.legal_name,
			tax_id = EXCLUDED.tax_id, registration_number = EXCLUDED.registration_number,
			founded_year = EXCLUDED.founded_year, organization_type = EXCLUDED.organization_type,
			mission_statement = EXCLUDED.mission_statement, vision_statement = EXCLUDED.vision_statement,
			description = EXCLUDED.description, thematic_areas = EXCLUDED.thematic_areas,
			geographic_scope = EXCLUDED.geographic_scope, target_beneficiaries = EXCLUDED.target_beneficiaries,
			address = EXCLUDED.address, city = EXCLUDED.city, country = EXCLUDED.country,
			postal_code = EXCLUDED.postal_code, phone = EXCLUDED.phone, email = EXCLUDED.email,
			website = EXCLUDED.website, staff_count = EXCLUDED.staff_count,
			volunteer_count = EXCLUDED.volunteer_count, annual_budget = EXCLUDED.annual_budget,
			updated_at = now()
		 RETURNING id, created_at, updated_at, (xmax = 0)`,
		p.UserID, p.OrganizationName, p.LegalName, p.TaxID, p.RegistrationNumber, p.FoundedYear,
		p.OrganizationType, p.MissionStatement, p.VisionStatement, p.Description, p.ThematicAreas,
		p.GeographicScope, p.TargetBeneficiaries, p.Address, p.City, p.Country, p.PostalCode, p.Phone, p.Email,
		p.Website, p.StaffCount, p.VolunteerCount, p.AnnualBudget,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert organization profile: %w", err)
	}
	return created, nil
}

// compile-time interface check
var _ OrganizationRepository = (*PostgresOrganizationRepo)(nil)
