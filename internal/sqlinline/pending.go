package sqlinline

const QInsertPendingSync = `--sql 9540c921-7329-419e-bab9-aedce3fee9f5
insert into pending_sync(id, idempotency_key, type, endpoint, method, payload, created_at)
values (?, ?, ?, ?, ?, ?, ?);
`

const QListPendingSync = `--sql 79ab9e55-ee33-4438-a7b5-79ec05a2e638
select id, idempotency_key, type, endpoint, method, payload, created_at
from pending_sync
order by id asc;
`

const QDeletePendingSync = `--sql 65991d5d-8f03-468b-8658-a2e5c8009bb1
delete from pending_sync where id = ?;
`

const QCountPendingSync = `--sql a3b6c490-c884-42c4-9cf9-b7e648338ead
select count(*) from pending_sync;
`

const QMaxPendingSyncID = `--sql 45ea7ec9-3e7c-4bff-9173-444c34fb69f5
select coalesce(max(id), 0) from pending_sync;
`
