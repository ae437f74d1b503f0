package build

import (
	"strconv"
	"strings"

	"peaque.dev/peaque/internal/codegen"
	"peaque.dev/peaque/internal/jobs"
	"peaque.dev/peaque/internal/routetree"
)

// backendEntryInputs carries everything generateBackendEntry needs to
// emit the standalone production server described by spec §4.H's
// "Generated backend entry contract".
type backendEntryInputs struct {
	PageTree      *routetree.Node
	APITree       *routetree.Node
	PagesDir      string // project-relative src/pages root, for guard.ts import paths
	Jobs          []jobs.Descriptor
	HasStartup    bool
	HasMiddleware bool
	AssetPrefix   string
	AssetDir      string
	HeadDocuments map[string]string // stack key -> rendered HTML document path
	ServerActions []string          // 'use server' module paths, from BuildResult.ServerShims
}

// generateBackendEntry emits the generated TypeScript source that,
// bundled to commonjs and run under Node, serves the whole production
// application with no further framework involvement.
func generateBackendEntry(in backendEntryInputs) string {
	b := codegen.New()

	b.Imports().Named("node:http", "createServer", "createServer")
	b.Imports().Named("node:fs", "readFileSync", "readFileSync")
	b.Imports().Named("node:fs", "existsSync", "existsSync")
	if len(in.Jobs) > 0 {
		b.Imports().Default("node-cron", "cron")
	}
	if in.HasStartup {
		b.Imports().SideEffect("/@src/src/startup")
	}
	if in.HasMiddleware {
		b.Imports().Default("/@src/src/middleware", "globalMiddleware")
	}

	b.Imports().Named("/peaque-wire.js", "encode", "wireEncode")
	b.Imports().Named("/peaque-wire.js", "decode", "wireDecode")

	apiBindings := routetree.CollectImports(in.APITree)
	for _, bnd := range apiBindings {
		b.Imports().Default("/@src/"+bnd.ImportPath, bnd.Identifier)
	}

	pageBindings := routetree.CollectImports(in.PageTree)
	routetree.Walk(in.PageTree, func(n *routetree.Node) {
		for _, ref := range n.Stacks[routetree.RoleGuard] {
			ident := identifierFor(pageBindings, ref.Path)
			b.Imports().Default("/@src/"+in.PagesDir+"/"+ref.Path, ident)
		}
	})

	serverActionImports := in.ServerActions
	for i, mod := range serverActionImports {
		b.Line("import * as %s from %q;", rpcNamespaceIdent(i), "/@src/"+mod)
	}
	for i, d := range in.Jobs {
		b.Line("import * as %s from %q;", jobNamespaceIdent(i), "/@src/"+d.ModulePath)
	}

	b.Blank()
	b.Line("const routes = [];")
	b.Line("const rpcModules = [];")
	b.Blank()

	routetree.Walk(in.APITree, func(n *routetree.Node) {
		ref, ok := n.Names[routetree.RoleHandler]
		if !ok {
			return
		}
		ident := identifierFor(apiBindings, ref.Path)
		mwStack := n.Stacks[routetree.RoleMiddleware]
		mwIdents := make([]string, 0, len(mwStack))
		for _, mref := range mwStack {
			mwIdents = append(mwIdents, identifierFor(apiBindings, mref.Path))
		}
		b.Line("routes.push({ pattern: %q, handlers: %s, middleware: [%s] });", n.Pattern, ident, strings.Join(mwIdents, ", "))
	})

	b.Blank()
	for i, mod := range serverActionImports {
		b.Line("rpcModules.push({ index: %d, path: %q, mod: %s });", i, mod, rpcNamespaceIdent(i))
	}

	b.Blank()
	routetree.Walk(in.PageTree, func(n *routetree.Node) {
		if !n.Accept {
			return
		}
		if _, isPage := n.Names[routetree.RolePage]; !isPage {
			return
		}
		key := headStackKey(n.Stacks[routetree.RoleHeads])
		doc, ok := in.HeadDocuments[key]
		if !ok {
			return
		}
		guardStack := n.Stacks[routetree.RoleGuard]
		guardIdents := make([]string, 0, len(guardStack))
		for _, ref := range guardStack {
			guardIdents = append(guardIdents, identifierFor(pageBindings, ref.Path))
		}
		b.Line("routes.push({ pattern: %q, method: \"GET\", htmlFile: %q, guards: [%s] });", n.Pattern, doc, strings.Join(guardIdents, ", "))
	})

	b.Blank()
	b.Line("const assetDir = %q;", in.AssetDir)
	b.Line("const assetPrefix = %q;", in.AssetPrefix)
	b.Blank()

	b.Block("function serveAsset(req, res, pathname) {", func() {
		b.Line("const rel = pathname.slice(assetPrefix.length);")
		b.Line("const file = assetDir + rel;")
		b.Line("if (!existsSync(file)) return false;")
		b.Line(`const enc = (req.headers['accept-encoding'] || '');`)
		b.Block("if (enc.includes('br') && existsSync(file + '.br')) {", func() {
			b.Line(`res.setHeader('Content-Encoding', 'br');`)
			b.Line("res.end(readFileSync(file + '.br'));")
			b.Line("return true;")
		}, "}")
		b.Block("if (enc.includes('gzip') && existsSync(file + '.gz')) {", func() {
			b.Line(`res.setHeader('Content-Encoding', 'gzip');`)
			b.Line("res.end(readFileSync(file + '.gz'));")
			b.Line("return true;")
		}, "}")
		b.Line("res.end(readFileSync(file));")
		b.Line("return true;")
	}, "}")

	b.Blank()
	b.Block("function dispatch(req, res) {", func() {
		b.Line("const url = new URL(req.url, 'http://localhost');")
		b.Line("const pathname = url.pathname;")
		b.Blank()
		b.Block("if (pathname.startsWith(assetPrefix)) {", func() {
			b.Line("if (serveAsset(req, res, pathname)) return;")
		}, "}")
		b.Blank()
		b.Block("if (pathname.startsWith('/api/__rpc/')) {", func() {
			b.Line("return dispatchRpc(req, res, pathname);")
		}, "}")
		b.Blank()
		b.Block("for (const route of routes) {", func() {
			b.Block("if (route.htmlFile && pathname === route.pattern && req.method === 'GET') {", func() {
				b.Block("return runPageGuards(route.guards || [], req, res).then((allowed) => {", func() {
					b.Line("if (!allowed) return;")
					b.Line("res.setHeader('Content-Type', 'text/html');")
					b.Line("res.end(readFileSync(route.htmlFile));")
				}, "});")
			}, "}")
			b.Block("if (route.handlers && matchPattern(route.pattern, pathname)) {", func() {
				b.Line("const handler = route.handlers[req.method];")
				b.Block("if (handler) {", func() {
					b.Line("return runMiddlewareChain(route.middleware || [], req, res, () => handler(req, res));")
				}, "}")
			}, "}")
		}, "}")
		b.Blank()
		b.Line("res.statusCode = 404;")
		b.Line("res.end('not found');")
	}, "}")

	b.Blank()
	b.Block("async function runPageGuards(guards, req, res) {", func() {
		b.Block("for (const guard of guards) {", func() {
			b.Line("const result = await guard(req);")
			b.Block("if (result && result.allow === false) {", func() {
				b.Line("if (result.redirect) {")
				b.Line("  res.statusCode = 302;")
				b.Line("  res.setHeader('Location', result.redirect);")
				b.Line("  res.end();")
				b.Line("} else {")
				b.Line("  res.statusCode = result.status || 403;")
				b.Line("  res.end(result.body || 'Forbidden');")
				b.Line("}")
				b.Line("return false;")
			}, "}")
		}, "}")
		b.Line("return true;")
	}, "}")

	b.Blank()
	b.Block("function runMiddlewareChain(mods, req, res, final) {", func() {
		b.Line("let i = 0;")
		b.Block("function next() {", func() {
			b.Line("if (i >= mods.length) return final();")
			b.Line("const mw = mods[i++];")
			b.Line("return mw(req, res, next);")
		}, "}")
		b.Line("return next();")
	}, "}")

	b.Blank()
	b.Block("function matchPattern(pattern, pathname) {", func() {
		b.Line("return pattern === pathname;")
	}, "}")

	b.Blank()
	b.Block("function allowCrossOrigin(req) {", func() {
		b.Line("const sfs = req.headers['sec-fetch-site'];")
		b.Line("if (sfs) return sfs === 'same-origin' || sfs === 'none';")
		b.Line("const origin = req.headers['origin'];")
		b.Line("if (!origin) return true;")
		b.Block("try {", func() {
			b.Line("return new URL(origin).host === req.headers['host'];")
		}, "} catch { return false; }")
	}, "}")

	b.Blank()
	b.Block("function dispatchRpc(req, res, pathname) {", func() {
		b.Block("if (req.method !== 'POST') {", func() {
			b.Line("res.statusCode = 404;")
			b.Line("res.end('not found');")
			b.Line("return;")
		}, "}")
		b.Block("if (!allowCrossOrigin(req)) {", func() {
			b.Line("res.statusCode = 403;")
			b.Line("res.end('Forbidden: Cross-origin request rejected');")
			b.Line("return;")
		}, "}")
		b.Line("const rest = pathname.slice('/api/__rpc/'.length);")
		b.Line("const slash = rest.lastIndexOf('/');")
		b.Block("if (slash < 0) {", func() {
			b.Line("res.statusCode = 404;")
			b.Line("res.end('not found');")
			b.Line("return;")
		}, "}")
		b.Line("const modPath = rest.slice(0, slash);")
		b.Line("const fn = rest.slice(slash + 1);")
		b.Line("const entry = rpcModules.find((m) => m.path === modPath);")
		b.Block("if (!entry || typeof entry.mod[fn] !== 'function') {", func() {
			b.Line("res.statusCode = 404;")
			b.Line("res.end('not found');")
			b.Line("return;")
		}, "}")
		b.Blank()
		b.Line("let body = '';")
		b.Line(`req.on('data', (chunk) => { body += chunk; });`)
		b.Block("req.on('end', async () => {", func() {
			b.Line("try {")
			b.Line("  const args = wireDecode(body).args;")
			b.Line("  const result = await entry.mod[fn](...args);")
			b.Line(`  res.setHeader('Content-Type', 'application/json');`)
			b.Line("  res.end(wireEncode(result));")
			b.Line("} catch (err) {")
			b.Line("  res.statusCode = 500;")
			b.Line("  res.end(JSON.stringify({ error: String(err && err.message || err) }));")
			b.Line("}")
		}, "});")
	}, "}")

	b.Blank()
	b.Line("let server = createServer(dispatch);")
	b.Line("if (typeof globalMiddleware !== 'undefined') { server = createServer((req, res) => globalMiddleware(req, res, () => dispatch(req, res))); }")

	b.Blank()
	b.Block("function registerJobs() {", func() {
		for i, d := range in.Jobs {
			ident := jobNamespaceIdent(i)
			b.Block("for (const expr of "+ident+".schedule) {", func() {
				b.Line("cron.schedule(expr, async () => {")
				b.Line("  try {")
				b.Line("    await " + ident + ".runJob();")
				b.Line("  } catch (err) {")
				b.Line("    console.error(%q, err);", d.Name)
				b.Line("  }")
				b.Line("}, { scheduled: true });")
			}, "}")
		}
	}, "}")
	if len(in.Jobs) > 0 {
		b.Line("registerJobs();")
	}

	b.Blank()
	b.Block("function parsePort() {", func() {
		b.Line("const args = process.argv.slice(2);")
		b.Block("for (let i = 0; i < args.length; i++) {", func() {
			b.Line(`if ((args[i] === '--port' || args[i] === '-p') && args[i + 1]) return Number(args[i + 1]);`)
		}, "}")
		b.Line("return 3000;")
	}, "}")

	b.Blank()
	b.Line("const port = parsePort();")
	b.Block("server.listen(port, () => {", func() {
		b.Line(`console.log('[peaque] listening on port ' + port);`)
	}, "});")

	b.Blank()
	b.Block("function shutdown() {", func() {
		b.Line("server.close(() => process.exit(0));")
	}, "}")
	b.Line(`process.on('SIGINT', shutdown);`)
	b.Line(`process.on('SIGTERM', shutdown);`)

	return b.String()
}

func identifierFor(bindings []routetree.ImportBinding, importPath string) string {
	for _, b := range bindings {
		if b.ImportPath == importPath {
			return b.Identifier
		}
	}
	return "undefined"
}

func rpcNamespaceIdent(i int) string {
	return "rpcMod" + strconv.Itoa(i)
}

func jobNamespaceIdent(i int) string {
	return "jobMod" + strconv.Itoa(i)
}
