package notification

const dockerHubPushPayload = `{
  "callback_url": "https://registry.hub.docker.com/u/svendowideit/testhook/hook/2141b5bi5i5b02bec211i4eeih0242eg11000a/",
  "push_data": {
    "images": [],
    "pushed_at": 1417566161,
    "pusher": "trustedbuilder",
    "tag": "1.0"
  },
  "repository": {
    "comment_count": 0,
    "date_created": 1417494799,
    "description": "",
    "dockerfile": "FROM scratch\n",
    "full_description": "Docker Hub based automated build from a GitHub repo",
    "is_official": false,
    "is_private": true,
    "is_trusted": true,
    "name": "testhook",
    "namespace": "svendowideit",
    "owner": "svendowideit",
    "repo_name": "svendowideit/testhook",
    "repo_url": "https://registry.hub.docker.com/u/svendowideit/testhook/",
    "star_count": 0,
    "status": "Active"
  }
}`

const dtrTagPushPayload = `{
  "type": "TAG_PUSH",
  "createdAt": "2017-05-12T13:17:57.437860682Z",
  "contents": {
    "namespace": "foo",
    "repository": "bar",
    "tag": "latest",
    "digest": "sha256:a543545e4bcb5b4d2d6f0b3d8d2d5b7f6d7f5d6c7b8e9f0a1b2c3d4e5f6a7b8c",
    "imageName": "foo/bar:latest",
    "os": "linux",
    "architecture": "amd64",
    "author": "admin",
    "pushedAt": "2017-05-12T13:17:57.406151455Z"
  },
  "location": "/repositories/foo/bar/tags/latest"
}`

const dtrScanCompletedPayload = `{
  "type": "SCAN_COMPLETED",
  "createdAt": "2017-05-12T13:20:01Z",
  "contents": {
    "namespace": "foo",
    "repository": "bar",
    "tag": "latest",
    "imageName": "foo/bar:latest",
    "scanSummary": {
      "critical": 2,
      "major": 5,
      "minor": 11,
      "last_scan_status": 6
    }
  },
  "location": "/repositories/foo/bar/tags/latest"
}`

const dtrPromotionPayload = `{
  "type": "PROMOTION",
  "createdAt": "2017-05-12T14:02:11Z",
  "contents": {
    "namespace": "acme",
    "repository": "app",
    "tag": "1.0",
    "digest": "sha256:0b1c2d3e4f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c",
    "imageName": "acme/app:1.0",
    "sourceRepository": "acme/src",
    "sourceTag": "rc1"
  },
  "location": "/repositories/acme/app/tags/1.0"
}`
