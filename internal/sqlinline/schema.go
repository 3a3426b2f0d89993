package sqlinline

// Schema statements are applied in order on every open; each is idempotent.

const QCreatePendingSync = `--sql d76bbd1a-ea0e-43b7-98ad-7de11d658150
create table if not exists pending_sync (
	id              integer primary key,
	idempotency_key text not null,
	type            text not null,
	endpoint        text not null,
	method          text not null,
	payload         blob not null,
	created_at      text not null
);
`

const QCreatePendingSyncCreatedIndex = `--sql e83123a4-f1cb-4c51-9cde-eabfad0ab241
create index if not exists idx_pending_sync_created on pending_sync(created_at);
`

const QCreateUploadDates = `--sql ba1fed6d-8556-42db-9174-b31e0351a583
create table if not exists upload_dates (
	category    text primary key,
	upload_date text not null
);
`

const QCreateCredentials = `--sql 880f3351-7695-4193-af10-310a882a4e7e
create table if not exists credentials (
	name       text primary key,
	token      text not null,
	expires_at text not null default '',
	updated_at text not null
);
`

// SchemaStatements lists the DDL applied by infra.OpenSQLite.
var SchemaStatements = []string{
	QCreatePendingSync,
	QCreatePendingSyncCreatedIndex,
	QCreateUploadDates,
	QCreateCredentials,
}
