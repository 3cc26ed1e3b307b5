/*
Package operation implements the project transformations: convert, generate-backend
and generate-base.

	+-------------+     +-------------+     +-------------+
	|  workspace  | --> |  generation | --> |   fileset   |
	|  (sources)  |     |   (model)   |     |  (decode)   |
	+-------------+     +-------------+     +------+------+
	                                               |
	                                        +------+------+
	                                        |  workspace  |
	                                        |   (write)   |
	                                        +-------------+

🔄 Flow:
 1. Look up the source workspace and read its sources
 2. Encode them into a prompt
 3. Call the model through a Generator
 4. Decode the reply into files
 5. Materialize the files into a new (or base) workspace and register it

📊 Progress:
Each step reports through a progress.Reporter: 10 prepare, 30 request,
50 / 80 inside the model call, 90 writing, 100 done.

Nothing is written to disk unless the reply decodes to at least one file with
safe paths.

🔍 Example:

	t, err := operation.New(operation.Options{Generator: client, Registry: reg})
	res, err := t.GenerateBase(ctx, operation.GenerateBaseRequest{Domain: "python"})
*/
package operation
