// Package password hashes and verifies credentials.
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] also accepts bcrypt hashes ($2a$, $2b$, $2y$) so rows
// written by earlier tooling, including the seeded administrator, keep
// working. [Hasher.NeedsRehash] flags those for replacement.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other taroAuth package.
//   - Log plaintext passwords.
package password
