/*
Package config loads and validates the startuply server configuration.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+-----+ +----+----+ +-----+-----+
	|   YAML    | |   HCL   | |   JSON    |
	|  Parser   | | Parser  | |  Parser   |
	+-----------+ +---------+ +-----------+

🔄 Flow:
1. Pick a parser by file extension (no file means defaults only)
2. Decode, rejecting unknown fields
3. Fill unset values with defaults
4. Apply environment overrides (STARTUPLY_API_KEY or generation.api_key_env, GITHUB_TOKEN, STARTUPLY_ADDR)
5. Validate; a missing model credential is ErrMissingCredential

HCL files can read the environment through the env object:

	generation {
	  api_key = env.MY_KEY
	}
*/
package config
