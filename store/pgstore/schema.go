package pgstore

import (
	"context"
	"fmt"
)

// Schema creates the account tables and the company registration function. It is
// idempotent.
const Schema = `
create table if not exists company (
	id         bigint generated always as identity primary key,
	name       text not null,
	plan       text not null default 'BASIC',
	is_active  boolean not null default true,
	created_at timestamptz not null default now()
);

create table if not exists company_account (
	id                bigint generated always as identity primary key,
	email             text not null unique,
	username          text not null,
	first_name        text,
	last_name         text,
	password_hash     text not null,
	company_id        bigint references company(id) on delete set null,
	is_verified       boolean not null default false,
	verification_code varchar(16),
	verify_attempts   integer not null default 0,
	login_attempts    integer not null default 0,
	locked_until      timestamptz,
	account_status    text not null default 'ACTIVE',
	created_at        timestamptz not null default now()
);

create table if not exists api_account (
	id            bigint generated always as identity primary key,
	username      text not null unique,
	password_hash text not null,
	is_active     boolean not null default true,
	date_created  timestamptz not null default now()
);

create or replace function sp_register_company(p_name text, p_plan text, p_active boolean)
returns table (company_id bigint)
language sql
as $$
	insert into company(name, plan, is_active) values (p_name, p_plan, p_active)
	returning id;
$$;
`

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
