package sqlinline

// QSelectIntegrationToken reads the stored API key of one provider.
const QSelectIntegrationToken = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from integration_tokens
where provider = $1::text
limit 1;
`

// QUpsertIntegrationToken stores or rotates the API key of one provider.
const QUpsertIntegrationToken = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into integration_tokens (id, provider, token, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, now(), now())
on conflict (provider) do update set
    token = excluded.token,
    updated_at = now();
`
