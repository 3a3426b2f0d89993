package sqlinline

const QSelectCredential = `--sql b5556ab4-00b9-4a50-aa98-89882b828701
select token, expires_at from credentials where name = ?;
`

const QUpsertCredential = `--sql 8c20ad56-822e-46a8-923c-1f3312fa1f9f
insert into credentials(name, token, expires_at, updated_at)
values (?, ?, ?, ?)
on conflict(name) do update set
	token = excluded.token,
	expires_at = excluded.expires_at,
	updated_at = excluded.updated_at;
`
