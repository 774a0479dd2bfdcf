package multimodal

const systemPrompt = "Bạn là trợ lý thị giác cho người khiếm thị. Trả lời bằng tiếng Việt, rõ ràng, không dùng markdown."

// DefaultPrompt asks the model to classify the photo and answer in a fixed
// line format that conversion.ParseAnalysis understands.
const DefaultPrompt = `Hãy phân tích hình ảnh này và xếp nó vào đúng một trong ba thể loại:
- Tài liệu: trang sách, văn bản, biển hiệu, màn hình có chữ. Đọc lại toàn bộ chữ theo đúng thứ tự.
- Hóa đơn: hóa đơn, biên lai, phiếu thu. Đọc tên cửa hàng, từng món hàng với số lượng và giá, tổng tiền, ngày giờ.
- Ngữ cảnh: khung cảnh, đồ vật, con người. Mô tả ngắn gọn những gì có trong ảnh và vị trí của chúng.

Trả lời đúng theo định dạng sau:
Thể loại: <Tài liệu | Ngữ cảnh | Hóa đơn>
Nội dung: <nội dung đọc được hoặc mô tả>

Nếu là Ngữ cảnh và có nguy hiểm cho người khiếm thị (bậc thang, xe cộ, vật cản, nước, lửa), thêm một dòng ở đầu câu trả lời:
Cảnh báo: <mô tả ngắn mối nguy>`
