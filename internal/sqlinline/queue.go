package sqlinline

const QEnqueueQueueItem = `--sql e1c278d0-98be-4ec1-a2c4-d102b9caec7e
insert into optimization_queue (id, image_url, file_id, prompt, settings, status, progress)
values ($1, $2, $3, $4, $5, 'pending', 0)
returning id;
`

const QClaimQueueItem = `--sql ca970bd0-2e9b-434b-ac07-575045c1770a
with next_item as (
    select id
    from optimization_queue
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update optimization_queue
    set status = 'processing', progress = 10, updated_at = now()
    where id in (select id from next_item)
    returning id, image_url, file_id, prompt, settings
)
select * from updated;
`

const QUpdateQueueProgress = `--sql d11e98c4-2390-4db2-893a-c39e4fe2865a
update optimization_queue
set progress = $2, updated_at = now()
where id = $1 and progress < $2;
`

const QCompleteQueueItem = `--sql f60cec75-d51d-4c15-a2fb-9843ccc61713
update optimization_queue
set status = $2,
    progress = 100,
    optimized_url = $3,
    error_message = nullif($4, ''),
    updated_at = now()
where id = $1;
`

const QSelectQueueItem = `--sql 864199f9-4470-4feb-b3e7-07cf62cb4188
select id, image_url, file_id, prompt, settings, status, progress,
       coalesce(optimized_url, ''), coalesce(error_message, ''), created_at, updated_at
from optimization_queue
where id = $1;
`
