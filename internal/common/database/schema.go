package database

// Schema is the DDL for every table the services read or write. Each statement is
// safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id               UUID PRIMARY KEY,
	idempotency_key  TEXT NOT NULL UNIQUE,
	session_id       TEXT NOT NULL,
	user_id          TEXT,
	contact          JSONB NOT NULL,
	trip             JSONB NOT NULL,
	plan             JSONB NOT NULL,
	add_ons          JSONB NOT NULL,
	addons_total     BIGINT NOT NULL,
	total_amount     BIGINT NOT NULL,
	currency         TEXT NOT NULL,
	payment_ref      TEXT,
	status           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS schengen_applications (
	id            UUID PRIMARY KEY,
	version       BIGINT NOT NULL,
	current_step  INT NOT NULL,
	form_data     JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS trip_profiles (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL UNIQUE,
	profile     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_conversations (
	id          UUID PRIMARY KEY,
	profile_id  UUID REFERENCES trip_profiles(id),
	agent_name  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id               UUID PRIMARY KEY,
	conversation_id  UUID NOT NULL REFERENCES chat_conversations(id),
	role             TEXT NOT NULL,
	content          TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS chat_messages_conversation_idx ON chat_messages (conversation_id, created_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id             BIGSERIAL PRIMARY KEY,
	event_type     TEXT NOT NULL,
	resource_type  TEXT NOT NULL,
	resource_id    TEXT NOT NULL,
	details        JSONB,
	created_at     TIMESTAMPTZ NOT NULL
);
`
