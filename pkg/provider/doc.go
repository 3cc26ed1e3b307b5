/*
Package provider fetches remote repositories into local workspaces.

	+-------------+
	|   Cloner    |
	|  (Source)   |
	+------+------+
	       |
	+------+------+
	|   GitHub    |
	|  (tarball)  |
	+-------------+

🎯 Purpose:
- Picks a cloner by repository host (ForURL)
- Downloads a repository snapshot and unpacks it into a directory

🔄 Flow:
1. Parse the URL (scheme optional) and look up the host factory
2. Resolve the ref (default branch unless the URL names one)
3. Stream the gzipped tarball and extract regular files, dropping the archive's top directory

Entries that would land outside the destination abort the clone with ErrUnsafeArchive.

🔍 Example:

	c, err := provider.ForURL(ctx, "https://github.com/walteh/app", provider.Options{Token: token})
	err = c.Clone(ctx, "https://github.com/walteh/app", dest)
*/
package provider
