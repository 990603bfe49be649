package main

const splashHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Story Map</title>
    <style>
        body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #1d1f2b; color: #eee; height: 100vh; display: flex; flex-direction: column; }
        h1 { font-weight: 300; margin: 24px 24px 8px; }
        #log { flex: 1; margin: 0 24px 24px; padding: 12px; background: #111; border-radius: 6px; overflow-y: auto; font: 12px/1.5 Consolas, monospace; white-space: pre-wrap; }
    </style>
</head>
<body>
    <h1>Starting story map&hellip;</h1>
    <div id="log"></div>
    <script>
        window.addLogLine = function (line) {
            var log = document.getElementById('log');
            var div = document.createElement('div');
            div.textContent = line;
            log.appendChild(div);
            if (log.childNodes.length > 500) log.removeChild(log.firstChild);
            log.scrollTop = log.scrollHeight;
        };
    </script>
</body>
</html>
`
