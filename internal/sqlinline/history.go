package sqlinline

const QInsertHistory = `--sql 63d3a39f-75b1-4aab-a1ab-65c06b8923b5
insert into optimization_history (queue_item_id, title, original_url, optimized_url, status, task_id)
values ($1, $2, $3, $4, $5, nullif($6, ''));
`
