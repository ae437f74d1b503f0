// Package devworker generates the Node.js worker process that backs
// internal/jsruntime.Runtime: a long-lived subprocess that receives
// NDJSON {id, module, export, args} requests on stdin and returns
// {id, result, error} on stdout, the Go-side half of that protocol
// already implemented by internal/jsruntime.
//
// Nothing in the teacher or the rest of the retrieval pack runs
// TypeScript, so this has no grounding source beyond the running dev
// server it talks to: the worker resolves every module specifier the
// same way the browser does, through Node's module customization hooks
// (node:module's register/resolve/load), fetching compiled source from
// the dev server's own "/@src/<path>" and "/peaque-*.js" endpoints
// instead of re-implementing a second transform pipeline in Node.
package devworker

import (
	"fmt"
	"path"

	"peaque.dev/peaque/internal/platform"
)

// LoaderHookFile is the module customization hook module's filename,
// written alongside WorkerFile so it can be registered by path.
const LoaderHookFile = "peaque-loader-hook.mjs"

// WorkerFile is the entry script passed to `node` as jsruntime.Start's
// workerScript argument.
const WorkerFile = "peaque-worker.mjs"

// Write materializes both scripts under dir and returns the worker
// script's path. The dev server address ("host:port") the hook fetches
// compiled module source from is not a parameter: it reaches the
// scripts as the PEAQUE_DEV_ADDR environment variable (see EnvVar)
// rather than being baked into the script text, so the same scripts
// serve every project.
func Write(fsys platform.FileSystem, dir string) (workerPath string, err error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	hookPath := path.Join(dir, LoaderHookFile)
	if err := fsys.WriteFile(hookPath, []byte(loaderHookSource), 0o644); err != nil {
		return "", err
	}
	workerPath = path.Join(dir, WorkerFile)
	if err := fsys.WriteFile(workerPath, []byte(workerSource), 0o644); err != nil {
		return "", err
	}
	return workerPath, nil
}

// EnvVar returns the environment variable entry jsruntime.Start's env
// slice must carry so the worker's loader hook knows which dev server
// to fetch compiled modules from.
func EnvVar(devServerAddr string) string {
	return fmt.Sprintf("PEAQUE_DEV_ADDR=%s", devServerAddr)
}

const loaderHookSource = `import http from 'node:http';

const addr = process.env.PEAQUE_DEV_ADDR || '127.0.0.1:3000';

export async function resolve(specifier, context, next) {
  if (specifier.startsWith('peaque-src:')) {
    return { url: specifier, shortCircuit: true };
  }
  if (specifier.startsWith('/')) {
    return { url: 'peaque-src:' + specifier, shortCircuit: true };
  }
  return next(specifier, context);
}

export async function load(url, context, next) {
  if (url.startsWith('peaque-src:')) {
    const source = await fetchText(url.slice('peaque-src:'.length));
    return { format: 'module', source, shortCircuit: true };
  }
  return next(url, context);
}

function fetchText(reqPath) {
  const [hostname, port] = addr.split(':');
  return new Promise((resolvePromise, rejectPromise) => {
    const req = http.get({ hostname, port: Number(port), path: reqPath }, (res) => {
      if (res.statusCode !== 200) {
        rejectPromise(new Error('peaque dev server returned ' + res.statusCode + ' for ' + reqPath));
        res.resume();
        return;
      }
      let data = '';
      res.setEncoding('utf8');
      res.on('data', (chunk) => { data += chunk; });
      res.on('end', () => resolvePromise(data));
    });
    req.on('error', rejectPromise);
  });
}
`

const workerSource = `import { register } from 'node:module';
import path from 'node:path';
import { fileURLToPath } from 'node:url';

const __dirname = path.dirname(fileURLToPath(import.meta.url));
register(path.join(__dirname, 'peaque-loader-hook.mjs'));

let buf = '';
process.stdin.setEncoding('utf8');
process.stdin.on('data', (chunk) => {
  buf += chunk;
  let idx;
  while ((idx = buf.indexOf('\n')) >= 0) {
    const line = buf.slice(0, idx);
    buf = buf.slice(idx + 1);
    if (line.trim()) handleRequest(JSON.parse(line));
  }
});

async function handleRequest(req) {
  try {
    const mod = await import('peaque-src:/@src/' + req.module);
    const fn = req.export === 'default' ? mod.default : mod[req.export];
    const args = req.args === undefined || req.args === null ? [] : req.args;
    const result = typeof fn === 'function' ? await fn(...args) : fn;
    send({ id: req.id, result: result === undefined ? null : result });
  } catch (err) {
    send({ id: req.id, error: (err && err.stack) || String(err) });
  }
}

function send(res) {
  process.stdout.write(JSON.stringify(res) + '\n');
}
`
