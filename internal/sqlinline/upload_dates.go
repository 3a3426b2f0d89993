package sqlinline

const QSelectUploadDates = `--sql 62f78b35-36d3-4949-818b-17c6eb5dbcd7
select category, upload_date from upload_dates;
`

const QUpsertUploadDate = `--sql cfa5dec4-a959-49f7-9f1c-1c334f34a558
insert into upload_dates(category, upload_date)
values (?, ?)
on conflict(category) do update set upload_date = excluded.upload_date;
`

const QDeleteUploadDates = `--sql 47732de9-e077-401b-9a6f-321ad44a89b5
delete from upload_dates;
`
