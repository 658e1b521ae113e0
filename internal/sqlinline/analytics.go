package sqlinline

const QInsertRequestEvent = `--sql 253cb273-7e60-41a8-89c9-7413a55289c2
insert into request_events (route, country, status_code)
values ($1, nullif($2, ''), $3);
`

const QQueueOverview = `--sql c7a10f92-849a-4cb0-b2e8-b37ae5ba4235
select count(*),
       count(*) filter (where status = 'completed'),
       count(*) filter (where status = 'completed_passthrough'),
       count(*) filter (where status = 'failed'),
       count(*) filter (where created_at > now() - interval '24 hours')
from optimization_queue;
`

const QTopRequestCountries = `--sql 75e1dcb5-d327-4306-baae-4612a011bb4d
select country, count(*)
from request_events
where country is not null
group by country
order by count(*) desc
limit 5;
`
